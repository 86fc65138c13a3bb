package geo

import (
	"math"
	"testing"
)

func TestValidCoordinates(t *testing.T) {
	cases := []struct {
		lat, lng float64
		want     bool
	}{
		{0, 0, true},
		{90, 180, true},
		{-90, -180, true},
		{43.238949, 76.889709, true},
		{91, 0, false},
		{-91, 0, false},
		{0, 181, false},
		{0, -181, false},
	}

	for _, c := range cases {
		if got := ValidCoordinates(c.lat, c.lng); got != c.want {
			t.Errorf("ValidCoordinates(%f, %f) = %v, ожидалось %v", c.lat, c.lng, got, c.want)
		}
	}
}

func TestDistance(t *testing.T) {
	a := Point{Lat: 43.238949, Lng: 76.889709}

	if d := Distance(a, a); d != 0 {
		t.Errorf("расстояние от точки до самой себя = %f, ожидалось 0", d)
	}

	// Сдвиг на 0.001° широты — это 6371000 * 0.001 * π/180 ≈ 111.19 м
	b := Point{Lat: a.Lat + 0.001, Lng: a.Lng}
	d := Distance(a, b)
	if math.Abs(d-111.19) > 0.5 {
		t.Errorf("расстояние при сдвиге на 0.001° широты = %f, ожидалось ~111.19", d)
	}
}

func TestBearing(t *testing.T) {
	origin := Point{Lat: 0, Lng: 0}

	cases := []struct {
		name string
		to   Point
		want float64
	}{
		{"север", Point{Lat: 1, Lng: 0}, 0},
		{"восток", Point{Lat: 0, Lng: 1}, 90},
		{"юг", Point{Lat: -1, Lng: 0}, 180},
		{"запад", Point{Lat: 0, Lng: -1}, 270},
	}

	for _, c := range cases {
		got := Bearing(origin, c.to)
		if math.Abs(got-c.want) > 0.01 {
			t.Errorf("азимут на %s = %f, ожидалось %f", c.name, got, c.want)
		}
	}
}

func TestPointToSegmentDistance(t *testing.T) {
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 0, Lng: 0.01}

	// Точка на середине отрезка
	mid := Point{Lat: 0, Lng: 0.005}
	if d := PointToSegmentDistance(mid, a, b); d > 0.001 {
		t.Errorf("расстояние от точки на отрезке = %f, ожидалось ~0", d)
	}

	// Точка за концом отрезка: ближайшая точка — конец b
	past := Point{Lat: 0, Lng: 0.02}
	want := Distance(past, b)
	if d := PointToSegmentDistance(past, a, b); math.Abs(d-want) > 0.001 {
		t.Errorf("расстояние за концом отрезка = %f, ожидалось %f", d, want)
	}

	// Точка до начала отрезка: ближайшая точка — начало a
	before := Point{Lat: 0, Lng: -0.01}
	want = Distance(before, a)
	if d := PointToSegmentDistance(before, a, b); math.Abs(d-want) > 0.001 {
		t.Errorf("расстояние до начала отрезка = %f, ожидалось %f", d, want)
	}
}

func TestPointToSegmentDistanceDegenerate(t *testing.T) {
	a := Point{Lat: 43.25, Lng: 76.95}
	p := Point{Lat: 43.26, Lng: 76.95}

	// Вырожденный отрезок a == b сводится к расстоянию до точки
	got := PointToSegmentDistance(p, a, a)
	want := Distance(p, a)
	if math.Abs(got-want) > 0.001 {
		t.Errorf("расстояние до вырожденного отрезка = %f, ожидалось %f", got, want)
	}
}

func TestSegmentProgressFraction(t *testing.T) {
	a := Point{Lat: 0, Lng: 0}
	b := Point{Lat: 0, Lng: 0.01}

	cases := []struct {
		name string
		p    Point
		want float64
	}{
		{"начало", a, 0},
		{"конец", b, 1},
		{"середина", Point{Lat: 0, Lng: 0.005}, 0.5},
		{"до начала", Point{Lat: 0, Lng: -0.01}, 0},
		{"за концом", Point{Lat: 0, Lng: 0.02}, 1},
		{"сбоку от середины", Point{Lat: 0.001, Lng: 0.005}, 0.5},
	}

	for _, c := range cases {
		got := SegmentProgressFraction(c.p, a, b)
		if math.Abs(got-c.want) > 0.0001 {
			t.Errorf("доля пути (%s) = %f, ожидалось %f", c.name, got, c.want)
		}
	}

	if got := SegmentProgressFraction(b, a, a); got != 0 {
		t.Errorf("доля пути на вырожденном отрезке = %f, ожидалось 0", got)
	}
}
