package web

import (
	"html/template"

	"authgate/internal/session"

	"github.com/gin-gonic/gin"
)

// The pages are deliberately inert placeholders: the scaffold exists for
// its session lifecycle and route protection, not its chrome.
var pageTemplates = template.Must(template.New("pages").Parse(`
{{define "login"}}<!DOCTYPE html>
<html>
<head><title>Sign in</title></head>
<body>
  <h1>Sign in</h1>
  {{if .Error}}<p class="error">{{.Error}}</p>{{end}}
  <form method="post" action="/login">
    <input type="hidden" name="next" value="{{.Next}}">
    <label>Email <input type="email" name="email" value="{{.Email}}" required></label>
    <label>Password <input type="password" name="password" required></label>
    <button type="submit">Sign in</button>
  </form>
</body>
</html>{{end}}

{{define "dashboard"}}<!DOCTYPE html>
<html>
<head><title>Dashboard</title></head>
<body>
  <h1>Dashboard</h1>
  <p>Signed in as {{.User.Email}}</p>
  <nav><a href="/profile">Profile</a></nav>
  <form method="post" action="/logout"><button type="submit">Sign out</button></form>
</body>
</html>{{end}}

{{define "profile"}}<!DOCTYPE html>
<html>
<head><title>Profile</title></head>
<body>
  <h1>Profile</h1>
  <dl>
    <dt>Email</dt><dd>{{.User.Email}}</dd>
    {{if .User.FullName}}<dt>Name</dt><dd>{{.User.FullName}}</dd>{{end}}
  </dl>
  <nav><a href="/dashboard">Dashboard</a></nav>
</body>
</html>{{end}}
`))

// loginView feeds the login template. Error is the inline failure message;
// Email and Next survive a failed submission so the visitor retries without
// retyping.
type loginView struct {
	Email string
	Next  string
	Error string
}

// pageView feeds the protected placeholder pages.
type pageView struct {
	User *session.User
}

func renderPage(c *gin.Context, status int, name string, data any) {
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.Status(status)
	if err := pageTemplates.ExecuteTemplate(c.Writer, name, data); err != nil {
		c.Error(err)
	}
}
