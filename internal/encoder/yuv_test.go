package encoder

import "testing"

// solidBGRA builds a 2x2 top-down BGRA image of one color (B,G,R), stride
// equal to width*4.
func solidBGRA(b, g, r byte) []byte {
	px := []byte{b, g, r, 0xFF}
	buf := make([]byte, 0, 16)
	for i := 0; i < 4; i++ {
		buf = append(buf, px...)
	}
	return buf
}

func TestBgraToI420ColorVectors(t *testing.T) {
	cases := []struct {
		name       string
		b, g, r    byte
		y, u, v    byte
	}{
		{"black", 0, 0, 0, 16, 128, 128},
		{"white", 255, 255, 255, 235, 128, 128},
		{"red", 0, 0, 255, 81, 90, 239},
		{"green", 0, 255, 0, 144, 54, 34},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			src := solidBGRA(tc.b, tc.g, tc.r)
			dst := make([]byte, 2*2+1+1) // Y:4 U:1 V:1
			bgraToI420(dst, src, 2, 2, 2*4)

			for i := 0; i < 4; i++ {
				if dst[i] != tc.y {
					t.Fatalf("Y[%d] = %d, want %d", i, dst[i], tc.y)
				}
			}
			if dst[4] != tc.u {
				t.Fatalf("U = %d, want %d", dst[4], tc.u)
			}
			if dst[5] != tc.v {
				t.Fatalf("V = %d, want %d", dst[5], tc.v)
			}
		})
	}
}
