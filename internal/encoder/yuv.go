package encoder

// bgraToI420 converts a top-down BGRA8 image (as produced by the frame ring)
// into planar I420 (YUV 4:2:0) using the ITU-R BT.601 studio-range matrix,
// the same coefficients the driver-variant encoder was verified against:
// black -> (16,128,128), white -> (235,128,128), pure red -> (81,90,239),
// pure green -> (144,54,34).
//
// dst must be sized exactly for width*height*3/2 bytes (Y plane followed by
// U and V planes at half resolution in both dimensions); width and height
// must both be even.
func bgraToI420(dst []byte, bgra []byte, width, height, stride int) {
	ySize := width * height
	uSize := (width / 2) * (height / 2)

	yPlane := dst[:ySize]
	uPlane := dst[ySize : ySize+uSize]
	vPlane := dst[ySize+uSize : ySize+2*uSize]

	for y := 0; y < height; y++ {
		row := bgra[y*stride : y*stride+width*4]
		yRow := yPlane[y*width : y*width+width]
		for x := 0; x < width; x++ {
			b := int32(row[x*4+0])
			g := int32(row[x*4+1])
			r := int32(row[x*4+2])
			yRow[x] = byte(16 + (66*r+129*g+25*b)>>8)
		}
	}

	// Chroma is subsampled 2x2: sample the top-left pixel of each block,
	// matching the encoder under test rather than averaging the block.
	for cy := 0; cy < height/2; cy++ {
		srcRow := bgra[(cy*2)*stride : (cy*2)*stride+width*4]
		uRow := uPlane[cy*(width/2) : cy*(width/2)+width/2]
		vRow := vPlane[cy*(width/2) : cy*(width/2)+width/2]
		for cx := 0; cx < width/2; cx++ {
			px := cx * 2 * 4
			b := int32(srcRow[px+0])
			g := int32(srcRow[px+1])
			r := int32(srcRow[px+2])
			uRow[cx] = byte(128 + (-38*r-74*g+112*b)>>8)
			vRow[cx] = byte(128 + (112*r-94*g-18*b)>>8)
		}
	}
}
