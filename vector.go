package main

import "math"

// Vector is a 2D value; every operation returns a new Vector
type Vector struct {
	X float64 `json:"x" msgpack:"x"`
	Y float64 `json:"y" msgpack:"y"`
}

// FromAngle returns the unit vector pointing at angle a
func FromAngle(a float64) Vector {
	return Vector{math.Cos(a), math.Sin(a)}
}

func (v Vector) Add(o Vector) Vector       { return Vector{v.X + o.X, v.Y + o.Y} }
func (v Vector) Sub(o Vector) Vector       { return Vector{v.X - o.X, v.Y - o.Y} }
func (v Vector) Scale(s float64) Vector    { return Vector{v.X * s, v.Y * s} }
func (v Vector) Dot(o Vector) float64      { return v.X*o.X + v.Y*o.Y }
func (v Vector) Mag() float64              { return math.Hypot(v.X, v.Y) }
func (v Vector) Angle() float64            { return math.Atan2(v.Y, v.X) }
func (v Vector) Distance(o Vector) float64 { return o.Sub(v).Mag() }

// AngleTo returns the direction from v to o
func (v Vector) AngleTo(o Vector) float64 { return o.Sub(v).Angle() }

// Rotate turns v by a radians around the origin
func (v Vector) Rotate(a float64) Vector {
	sin, cos := math.Sincos(a)
	return Vector{v.X*cos - v.Y*sin, v.X*sin + v.Y*cos}
}

// Normalize returns the unit vector of v, or the zero vector when v has no length
func (v Vector) Normalize() Vector {
	m := v.Mag()
	if m == 0 {
		return Vector{}
	}
	return Vector{v.X / m, v.Y / m}
}
