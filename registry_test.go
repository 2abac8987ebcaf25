package optix

import "testing"

func TestAddElementRejectsDuplicateName(t *testing.T) {
	sys := NewSystem()
	if _, err := sys.AddElement("m1", NewMirror("m1", "Mirror<Plane>", PlaneShape{})); err != nil {
		t.Fatalf("first AddElement: %v", err)
	}
	if _, err := sys.AddElement("m1", NewMirror("m1", "Mirror<Plane>", PlaneShape{})); err == nil {
		t.Error("second AddElement with same name = nil error, want error")
	}
}

func TestLinkRejectsCycle(t *testing.T) {
	sys := NewSystem()
	sys.AddElement("a", NewMirror("a", "Mirror<Plane>", PlaneShape{}))
	sys.AddElement("b", NewMirror("b", "Mirror<Plane>", PlaneShape{}))
	sys.AddElement("c", NewMirror("c", "Mirror<Plane>", PlaneShape{}))

	if err := sys.Link("a", "b"); err != nil {
		t.Fatalf("Link(a,b): %v", err)
	}
	if err := sys.Link("b", "c"); err != nil {
		t.Fatalf("Link(b,c): %v", err)
	}
	if err := sys.Link("c", "a"); err == nil {
		t.Error("Link(c,a) closing a cycle = nil error, want error")
	}
}

func TestDeleteElementNullsNeighbourLinks(t *testing.T) {
	sys := NewSystem()
	sys.AddElement("a", NewMirror("a", "Mirror<Plane>", PlaneShape{}))
	sys.AddElement("b", NewMirror("b", "Mirror<Plane>", PlaneShape{}))
	sys.AddElement("c", NewMirror("c", "Mirror<Plane>", PlaneShape{}))
	sys.Link("a", "b")
	sys.Link("b", "c")

	if err := sys.DeleteElement("b"); err != nil {
		t.Fatalf("DeleteElement: %v", err)
	}
	a, _ := sys.Get("a")
	c, _ := sys.Get("c")
	if a.Next != InvalidElementID {
		t.Errorf("a.Next = %v, want InvalidElementID", a.Next)
	}
	if c.Prev != InvalidElementID {
		t.Errorf("c.Prev = %v, want InvalidElementID", c.Prev)
	}
	if _, ok := sys.Get("b"); ok {
		t.Error("Get(\"b\") found deleted element")
	}
}

func TestSetParameterResyncsShape(t *testing.T) {
	sys := NewSystem()
	sd, err := sys.CreateElement("m1", "Mirror<Sphere>")
	if err != nil {
		t.Fatalf("CreateElement: %v", err)
	}
	if err := sys.SetParameter("m1", "curvature", 0.5); err != nil {
		t.Fatalf("SetParameter: %v", err)
	}
	sph, ok := sd.Shape.(SphereShape)
	if !ok {
		t.Fatalf("Shape type = %T, want SphereShape", sd.Shape)
	}
	if got, want := sph.R, 1/0.5; got != want {
		t.Errorf("SphereShape.R = %v, want %v", got, want)
	}
	if sd.Aligned {
		t.Error("Aligned = true after SetParameter, want false")
	}
}

func TestNamesSortedAndSourcesFiltered(t *testing.T) {
	sys := NewSystem()
	sys.AddElement("zzz", NewCartesianGridSource("zzz"))
	sys.AddElement("aaa", NewMirror("aaa", "Mirror<Plane>", PlaneShape{}))

	names := sys.Names()
	if len(names) != 2 || names[0] != "aaa" || names[1] != "zzz" {
		t.Errorf("Names() = %v, want sorted [aaa zzz]", names)
	}

	sources := sys.Sources()
	if len(sources) != 1 || sources[0] != "zzz" {
		t.Errorf("Sources() = %v, want [zzz]", sources)
	}
}
