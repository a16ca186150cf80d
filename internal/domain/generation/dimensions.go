package generation

// Supported aspect ratios.
const (
	AspectSquare    = "1:1"
	AspectPortrait  = "9:16"
	AspectLandscape = "16:9"
	AspectCustom    = "custom"
)

var aspectRatios = map[string][2]int{
	AspectSquare:    {1, 1},
	AspectPortrait:  {9, 16},
	AspectLandscape: {16, 9},
}

// ResolveDimensions returns the output size of a request.
// Explicit width and height win. Otherwise the aspect ratio is scaled so its
// long side is BaseDimension. Both sides must fall within [MinDimension, MaxDimension].
func ResolveDimensions(width, height int, aspect string) (int, int, error) {
	switch {
	case width != 0 || height != 0:
		if width == 0 || height == 0 {
			return 0, 0, invalidf("width and height must be given together")
		}
	case aspect == "" || aspect == AspectSquare:
		width, height = BaseDimension, BaseDimension
	case aspect == AspectCustom:
		return 0, 0, invalidf("custom aspect ratio requires width and height")
	default:
		ratio, ok := aspectRatios[aspect]
		if !ok {
			return 0, 0, invalidf("unsupported aspect ratio %q", aspect)
		}
		if ratio[0] >= ratio[1] {
			width = BaseDimension
			height = BaseDimension * ratio[1] / ratio[0]
		} else {
			height = BaseDimension
			width = BaseDimension * ratio[0] / ratio[1]
		}
	}

	if width < MinDimension || width > MaxDimension || height < MinDimension || height > MaxDimension {
		return 0, 0, invalidf("dimensions %dx%d outside [%d, %d]", width, height, MinDimension, MaxDimension)
	}
	return width, height, nil
}
