package geo

import (
	"math"
)

// Радиус Земли в метрах
const earthRadiusMeters = 6371000.0

// Point представляет географическую точку (WGS84)
type Point struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// ValidCoordinates проверяет, что координаты находятся в допустимых пределах
func ValidCoordinates(lat, lng float64) bool {
	return lat >= -90 && lat <= 90 && lng >= -180 && lng <= 180
}

// Distance вычисляет расстояние между двумя точками в метрах по формуле гаверсинуса
func Distance(a, b Point) float64 {
	dLat := (b.Lat - a.Lat) * math.Pi / 180
	dLng := (b.Lng - a.Lng) * math.Pi / 180

	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(a.Lat*math.Pi/180)*math.Cos(b.Lat*math.Pi/180)*
			math.Sin(dLng/2)*math.Sin(dLng/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusMeters * c
}

// Bearing вычисляет начальный азимут от точки a к точке b в градусах [0, 360)
func Bearing(a, b Point) float64 {
	dLng := (b.Lng - a.Lng) * math.Pi / 180
	latA := a.Lat * math.Pi / 180
	latB := b.Lat * math.Pi / 180

	y := math.Sin(dLng) * math.Cos(latB)
	x := math.Cos(latA)*math.Sin(latB) -
		math.Sin(latA)*math.Cos(latB)*math.Cos(dLng)

	bearing := math.Atan2(y, x) * 180 / math.Pi
	return math.Mod(bearing+360, 360)
}

// PointToSegmentDistance вычисляет расстояние от точки p до ближайшей точки отрезка a-b.
// Проекция считается в координатах lat/lng как на плоскости, итоговое
// расстояние — по гаверсинусу. На городских масштабах погрешность допустима.
func PointToSegmentDistance(p, a, b Point) float64 {
	px, py := p.Lng, p.Lat
	ax, ay := a.Lng, a.Lat
	bx, by := b.Lng, b.Lat

	cx := bx - ax
	cy := by - ay

	lenSq := cx*cx + cy*cy
	if lenSq == 0 {
		// Вырожденный отрезок: a == b
		return Distance(p, a)
	}

	param := ((px-ax)*cx + (py-ay)*cy) / lenSq

	var xx, yy float64
	switch {
	case param < 0:
		xx, yy = ax, ay
	case param > 1:
		xx, yy = bx, by
	default:
		xx = ax + param*cx
		yy = ay + param*cy
	}

	return Distance(p, Point{Lat: yy, Lng: xx})
}

// SegmentProgressFraction возвращает долю [0,1] пройденного пути вдоль отрезка a-b,
// соответствующую ближайшей к p точке отрезка. Для вырожденного отрезка возвращает 0.
func SegmentProgressFraction(p, a, b Point) float64 {
	px, py := p.Lng, p.Lat
	ax, ay := a.Lng, a.Lat
	bx, by := b.Lng, b.Lat

	cx := bx - ax
	cy := by - ay

	lenSq := cx*cx + cy*cy
	if lenSq == 0 {
		return 0
	}

	param := ((px-ax)*cx + (py-ay)*cy) / lenSq
	return math.Max(0, math.Min(1, param))
}
