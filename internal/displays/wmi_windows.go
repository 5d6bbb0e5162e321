//go:build windows

package displays

import (
	"fmt"
	"runtime"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"
)

// adapterIdentity is the one piece of identity EnumDisplayMonitors cannot
// supply: the GPU adapter's friendly name and a stable per-adapter int64
// (pnpDeviceIDHash of its PNPDeviceID; not a DXGI LUID).
type adapterIdentity struct {
	name string
	luid int64
}

// queryAdapters uses the same ole.CoInitializeEx / oleutil.CreateObject
// / oleutil.GetProperty idiom as the patching package's Windows Update
// session, pointed at WMI's SWbemLocator instead of Microsoft.Update.Session,
// to enumerate every Win32_VideoController.
func queryAdapters() ([]adapterIdentity, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_MULTITHREADED); err != nil {
		return nil, fmt.Errorf("displays: CoInitializeEx: %w", err)
	}
	defer ole.CoUninitialize()

	unknown, err := oleutil.CreateObject("WbemScripting.SWbemLocator")
	if err != nil {
		return nil, fmt.Errorf("displays: CreateObject(SWbemLocator): %w", err)
	}
	defer unknown.Release()

	locator, err := unknown.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, fmt.Errorf("displays: QueryInterface(IDispatch): %w", err)
	}
	defer locator.Release()

	serviceVar, err := oleutil.CallMethod(locator, "ConnectServer")
	if err != nil {
		return nil, fmt.Errorf("displays: ConnectServer: %w", err)
	}
	defer serviceVar.Clear()

	service := serviceVar.ToIDispatch()
	if service == nil {
		return nil, fmt.Errorf("displays: ConnectServer returned no service")
	}
	defer service.Release()

	resultVar, err := oleutil.CallMethod(service, "ExecQuery", "SELECT Name, AdapterCompatibility, PNPDeviceID FROM Win32_VideoController")
	if err != nil {
		return nil, fmt.Errorf("displays: ExecQuery(Win32_VideoController): %w", err)
	}
	defer resultVar.Clear()

	rows := resultVar.ToIDispatch()
	if rows == nil {
		return nil, fmt.Errorf("displays: ExecQuery returned no result set")
	}
	defer rows.Release()

	countVar, err := oleutil.GetProperty(rows, "Count")
	if err != nil {
		return nil, fmt.Errorf("displays: Win32_VideoController.Count: %w", err)
	}
	defer countVar.Clear()
	count := int(countVar.Val)

	itemMethod, err := oleutil.GetProperty(rows, "_NewEnum")
	if err != nil {
		return nil, fmt.Errorf("displays: Win32_VideoController._NewEnum: %w", err)
	}
	defer itemMethod.Clear()

	enum, err := ole.IEnumVARIANTFromDispatch(itemMethod.ToIDispatch())
	if err != nil {
		return nil, fmt.Errorf("displays: IEnumVARIANTFromDispatch: %w", err)
	}
	defer enum.Release()

	adapters := make([]adapterIdentity, 0, count)
	for {
		row, length, err := enum.Next(1)
		if err != nil || length == 0 {
			break
		}
		controller := row.ToIDispatch()
		if controller == nil {
			continue
		}

		name, _ := getStringProperty(controller, "Name")
		pnpID, _ := getStringProperty(controller, "PNPDeviceID")
		controller.Release()

		adapters = append(adapters, adapterIdentity{
			name: name,
			luid: pnpDeviceIDHash(pnpID),
		})
	}

	return adapters, nil
}

func getStringProperty(dispatch *ole.IDispatch, name string) (string, error) {
	value, err := oleutil.GetProperty(dispatch, name)
	if err != nil {
		return "", err
	}
	defer value.Clear()
	return value.ToString(), nil
}

// pnpDeviceIDHash derives a stable int64 from a PNPDeviceID string: WMI
// exposes no true DXGI-style LUID, so this is the closest stable per-adapter
// identifier available without a second DXGI enumeration pass.
func pnpDeviceIDHash(id string) int64 {
	var h int64 = 1469598103934665603 // FNV-1a offset basis
	for i := 0; i < len(id); i++ {
		h ^= int64(id[i])
		h *= 1099511628211 // FNV-1a prime
	}
	return h
}
