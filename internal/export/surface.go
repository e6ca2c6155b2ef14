package export

import "github.com/tacticsboard/choreo/internal/render"

// SurfaceFactory allocates raster surfaces for the given pitch.
func SurfaceFactory(pitch render.Pitch) CanvasFactory {
	return func(width, height int) (Canvas, error) {
		s, err := render.NewSurface(width, height, pitch)
		if err != nil {
			return nil, err
		}
		return s, nil
	}
}
