package transform

// Valid ranges of the filter triple, in percent.
const (
	MinBrightness = 0
	MaxBrightness = 200
	MinContrast   = 0
	MaxContrast   = 200
	MinGrayscale  = 0
	MaxGrayscale  = 100
)

// Filters is the brightness/contrast/grayscale triple applied before rotation.
// Brightness and contrast are 100 at identity; grayscale is 0 at identity.
type Filters struct {
	Brightness float64 `json:"brightness" validate:"gte=0,lte=200"`
	Contrast   float64 `json:"contrast" validate:"gte=0,lte=200"`
	Grayscale  float64 `json:"grayscale" validate:"gte=0,lte=100"`
}

// IdentityFilters returns the triple that leaves pixels unchanged.
func IdentityFilters() Filters {
	return Filters{Brightness: 100, Contrast: 100, Grayscale: 0}
}

// IsIdentity reports whether applying f is a no-op.
func (f Filters) IsIdentity() bool {
	return f == IdentityFilters()
}

// Clamp limits every value to its valid range.
func (f Filters) Clamp() Filters {
	return Filters{
		Brightness: clamp(f.Brightness, MinBrightness, MaxBrightness),
		Contrast:   clamp(f.Contrast, MinContrast, MaxContrast),
		Grayscale:  clamp(f.Grayscale, MinGrayscale, MaxGrayscale),
	}
}

// colorFunc folds the three filters into one per-pixel function so they are
// applied in a single pass. Channels are in [0, 1].
func (f Filters) colorFunc() func(r, g, b, a float32) (float32, float32, float32, float32) {
	brightness := float32(f.Brightness / 100)
	contrast := float32(f.Contrast / 100)
	gray := float32(f.Grayscale / 100)

	return func(r, g, b, a float32) (float32, float32, float32, float32) {
		r, g, b = r*brightness, g*brightness, b*brightness

		r = (r-0.5)*contrast + 0.5
		g = (g-0.5)*contrast + 0.5
		b = (b-0.5)*contrast + 0.5

		if gray > 0 {
			lum := 0.2126*r + 0.7152*g + 0.0722*b
			r = r + (lum-r)*gray
			g = g + (lum-g)*gray
			b = b + (lum-b)*gray
		}

		return clamp32(r), clamp32(g), clamp32(b), a
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

func clamp32(v float32) float32 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
