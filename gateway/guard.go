package gateway

import (
	"net/http"
	"slices"

	"github.com/ogabek/istudy-gate/authstate"
)

// RequireAuth gates every protected route on the session snapshot.
//
// While startup recovery is still in flight the guard renders a neutral
// holding page and never redirects; a decision made before recovery
// settles would bounce a valid session to the login screen.
func (g *Gateway) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		snap := g.machine.Snapshot()
		if snap.Loading || !snap.Initialized {
			g.renderLoading(w)
			return
		}
		if !snap.IsAuthenticated {
			// Attempted deep links are discarded on purpose; there is no
			// return-to memory.
			http.Redirect(w, r, "/login", http.StatusSeeOther)
			return
		}
		g.touch()
		next.ServeHTTP(w, r)
	})
}

// RequireRoles restricts a route to the given role tags, composed inside
// the authenticated surface.
//
// A SUPER_ADMIN landing on a route outside their set is routine (their home
// is the users section), so they get an access-denied page with a way back
// instead of a redirect. Any other mismatch bounces to the general
// dashboard.
func (g *Gateway) RequireRoles(roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			snap := g.machine.Snapshot()
			if snap.Loading {
				g.renderLoading(w)
				return
			}
			if snap.User != nil && slices.Contains(roles, snap.User.Role) {
				next.ServeHTTP(w, r)
				return
			}
			if snap.User != nil && snap.User.Role == authstate.RoleSuperAdmin {
				g.render(w, http.StatusForbidden, deniedPage, pageData{
					Title:   "Ruxsat yo'q",
					HomeURL: "/users",
				})
				return
			}
			http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
		})
	}
}

// rootRedirect sends the operator to their role's home section.
func (g *Gateway) rootRedirect(w http.ResponseWriter, r *http.Request) {
	snap := g.machine.Snapshot()
	if snap.Loading {
		g.renderLoading(w)
		return
	}
	if snap.User != nil && snap.User.Role == authstate.RoleSuperAdmin {
		http.Redirect(w, r, "/users", http.StatusSeeOther)
		return
	}
	http.Redirect(w, r, "/dashboard", http.StatusSeeOther)
}
