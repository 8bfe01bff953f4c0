package sandbox

// SetIDSource replaces the id generator so tests can force collisions.
func (g *Gateway) SetIDSource(newID func(prefix string) string) { g.newID = newID }
