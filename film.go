package optix

// Film is a transmissive element kind: SurfaceData composed with a
// Shape, recording the ray and (optionally) applying coating Fresnel
// amplitudes without changing direction.
type Film struct {
	*SurfaceData
}

func NewFilm(name, class string, shape Shape) *Film {
	e := NewElement(name, class, KindFilm, true)
	e.Shape = shape
	return &Film{SurfaceData: NewSurfaceData(e, RecordOnExit)}
}
