package gateway

import (
	"net/http"
	"strings"

	"github.com/ogabek/istudy-gate/session"
)

// LoginPage handles GET /login.
func (g *Gateway) LoginPage(w http.ResponseWriter, r *http.Request) {
	if g.machine.Snapshot().IsAuthenticated {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}
	g.render(w, http.StatusOK, loginPage, pageData{Title: "Kirish"})
}

// LoginSubmit handles POST /login. Failure messages render inline in the
// form; success lands on the role home via the root redirect.
func (g *Gateway) LoginSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		g.render(w, http.StatusBadRequest, loginPage, pageData{Title: "Kirish"})
		return
	}
	creds := session.Credentials{
		Username: strings.TrimSpace(r.PostFormValue("username")),
		Password: strings.TrimSpace(r.PostFormValue("password")),
	}

	if err := g.controller.Login(r.Context(), creds); err != nil {
		g.render(w, http.StatusOK, loginPage, pageData{
			Title:    "Kirish",
			Error:    err.Error(),
			Username: creds.Username,
		})
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// LogoutSubmit handles POST /logout. Identical effect to the automatic
// logouts the watchdog triggers.
func (g *Gateway) LogoutSubmit(w http.ResponseWriter, r *http.Request) {
	g.controller.Logout(r.Context())
	http.Redirect(w, r, "/login", http.StatusSeeOther)
}
