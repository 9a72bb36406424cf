package gateway

import (
	"html/template"
	"log/slog"
	"net/http"

	"github.com/ogabek/istudy-gate/authstate"
)

// The dashboard shells are intentionally plain: the gateway's job is the
// session and the guards, not the UI. Operator-facing text is Uzbek, same
// as the product.

const pageShell = `<!doctype html>
<html lang="uz">
<head><meta charset="utf-8"><title>{{.Title}} — iStudy</title></head>
<body>
{{block "body" .}}{{end}}
</body>
</html>`

var (
	loginPage = mustPage(`{{define "body"}}
<h1>iStudy — Kirish</h1>
{{if .Error}}<p class="error" role="alert">{{.Error}}</p>{{end}}
<form method="post" action="/login">
  <label>Username <input name="username" value="{{.Username}}" autofocus></label>
  <label>Parol <input name="password" type="password"></label>
  <button type="submit">Kirish</button>
</form>
{{end}}`)

	loadingPage = mustPage(`{{define "body"}}
<p>Sessiya tekshirilmoqda...</p>
{{end}}`)

	deniedPage = mustPage(`{{define "body"}}
<h1>Ruxsat yo'q</h1>
<p>Sizga bu sahifaga kirish ruxsati yo'q</p>
<a href="{{.HomeURL}}">Foydalanuvchilar bo'limiga qaytish</a>
{{end}}`)

	sectionPage = mustPage(`{{define "body"}}
<nav>
{{range .Nav}}<a href="{{.Path}}">{{.Label}}</a> {{end}}
<form method="post" action="/logout" style="display:inline"><button type="submit">Chiqish</button></form>
</nav>
<h1>{{.Title}}</h1>
<p>{{.Username}} ({{.Role}}){{if .BranchName}} — {{.BranchName}}{{end}}</p>
<div id="app" data-section="{{.Section}}"></div>
{{end}}`)

	notFoundPage = mustPage(`{{define "body"}}
<h1>404</h1>
<p>Sahifa topilmadi</p>
<a href="/">Bosh sahifa</a>
{{end}}`)
)

func mustPage(body string) *template.Template {
	t := template.Must(template.New("page").Parse(pageShell))
	return template.Must(t.Parse(body))
}

type navLink struct {
	Path  string
	Label string
}

// adminNav and superNav mirror the sidebar the SPA showed per role.
var (
	adminNav = []navLink{
		{"/dashboard", "Dashboard"},
		{"/students", "O'quvchilar"},
		{"/teachers", "O'qituvchilar"},
		{"/groups", "Guruhlar"},
		{"/payments", "To'lovlar"},
		{"/expenses", "Xarajatlar"},
		{"/salary", "Oyliklar"},
		{"/product-sales", "Mahsulot savdosi"},
		{"/reports", "Hisobotlar"},
	}
	superNav = []navLink{
		{"/users", "Foydalanuvchilar"},
		{"/branches", "Filiallar"},
		{"/reports", "Hisobotlar"},
	}
)

type pageData struct {
	Title      string
	Section    string
	Username   string
	Role       string
	BranchName string
	Nav        []navLink
	Error      string
	HomeURL    string
}

func (g *Gateway) render(w http.ResponseWriter, status int, tmpl *template.Template, data any) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.Execute(w, data); err != nil {
		g.logger.Error("rendering page", slog.Any("error", err))
	}
}

// section builds a handler serving the named dashboard shell.
func (g *Gateway) section(title, section string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := g.machine.Snapshot()
		data := pageData{Title: title, Section: section}
		if snap.User != nil {
			data.Username = snap.User.Username
			data.Role = snap.User.Role
			if snap.User.BranchName != nil {
				data.BranchName = *snap.User.BranchName
			}
			if snap.User.Role == authstate.RoleSuperAdmin {
				data.Nav = superNav
			} else {
				data.Nav = adminNav
			}
		}
		g.render(w, http.StatusOK, sectionPage, data)
	}
}

func (g *Gateway) renderLoading(w http.ResponseWriter) {
	w.Header().Set("Retry-After", "1")
	g.render(w, http.StatusServiceUnavailable, loadingPage, pageData{Title: "Yuklanmoqda"})
}

func (g *Gateway) notFound(w http.ResponseWriter, r *http.Request) {
	g.render(w, http.StatusNotFound, notFoundPage, pageData{Title: "Topilmadi"})
}
