package avatar3d

import "github.com/go-gl/mathgl/mgl32"

// InteractionOverride is the short-lived "happy" reaction to a head tap.
// It outranks the chat-driven emotion while active.
type InteractionOverride struct {
	Active    bool
	ExpiresAt float64
}

// Trigger (re)starts the override at clock time now. Repeated taps reset
// the expiry instead of extending it.
func (o InteractionOverride) Trigger(now, duration float64) InteractionOverride {
	return InteractionOverride{Active: true, ExpiresAt: now + duration}
}

func (o InteractionOverride) Cancel() InteractionOverride {
	return InteractionOverride{}
}

// Expire clears the override once now has reached its expiry.
func (o InteractionOverride) Expire(now float64) InteractionOverride {
	if o.Active && now >= o.ExpiresAt {
		return InteractionOverride{}
	}
	return o
}

func (o InteractionOverride) IsActive(now float64) bool {
	return o.Active && now < o.ExpiresAt
}

// HeadCollider is a sphere around the head used for pointer hit tests by
// hosts that do not have their own collision volume.
type HeadCollider struct {
	Center mgl32.Vec3
	Radius float32
}

func (c HeadCollider) Contains(p mgl32.Vec3) bool {
	return p.Sub(c.Center).Len() <= c.Radius
}

// IntersectRay returns the nearest hit of a ray against the sphere.
// dir need not be normalised.
func (c HeadCollider) IntersectRay(origin, dir mgl32.Vec3) (mgl32.Vec3, bool) {
	if dir.Len() == 0 {
		return mgl32.Vec3{}, false
	}
	d := dir.Normalize()
	oc := origin.Sub(c.Center)
	b := oc.Dot(d)
	cc := oc.Dot(oc) - c.Radius*c.Radius
	disc := b*b - cc
	if disc < 0 {
		return mgl32.Vec3{}, false
	}
	sq := sqrt32(disc)
	t := -b - sq
	if t < 0 {
		t = -b + sq
	}
	if t < 0 {
		return mgl32.Vec3{}, false
	}
	return origin.Add(d.Mul(t)), true
}
