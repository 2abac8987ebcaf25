package optix

// Mirror is a reflective element kind: SurfaceData composed with a
// Shape, reflecting the ray's direction about the local normal.
type Mirror struct {
	*SurfaceData
}

func NewMirror(name, class string, shape Shape) *Mirror {
	e := NewElement(name, class, KindMirror, false)
	e.Shape = shape
	return &Mirror{SurfaceData: NewSurfaceData(e, RecordNone)}
}

// Reflect applies direction <- direction - 2*(direction.normal)*normal.
func Reflect(direction, normal Vec3) Vec3 {
	return direction.Sub(normal.Scale(2 * direction.Dot(normal)))
}
