package console

import (
	"context"
	"errors"
	"html/template"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/stemsi/elearning/internal/client"
	"github.com/stemsi/elearning/internal/model"
	"github.com/stemsi/elearning/internal/response"
)

// safeNext keeps post-login redirects on this host.
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.HasPrefix(next, "/\\") {
		return "/"
	}
	if strings.HasPrefix(next, "/login") {
		return "/"
	}
	return next
}

func (s *Server) loginPage(c *gin.Context) {
	if s.store.Snapshot().LoggedIn {
		c.Redirect(http.StatusFound, safeNext(c.Query("next")))
		return
	}
	s.render(c, http.StatusOK, "login.html", page{
		Title:  "Sign in",
		Next:   c.Query("next"),
		Reason: c.Query("reason"),
	})
}

func (s *Server) login(c *gin.Context) {
	creds := client.Credentials{
		Email:    strings.TrimSpace(c.PostForm("email")),
		Password: c.PostForm("password"),
	}
	next := c.PostForm("next")

	verified, err := s.store.Login(c.Request.Context(), creds)
	if err != nil {
		status := http.StatusBadGateway
		msg := "The server could not be reached. Try again."
		var apiErr *client.APIError
		if errors.As(err, &apiErr) {
			status = apiErr.Status
			msg = s.store.Snapshot().Error
		}
		s.render(c, status, "login.html", page{Title: "Sign in", Next: next, Email: creds.Email, Error: msg})
		return
	}
	if !verified {
		s.render(c, http.StatusOK, "login.html", page{Title: "Sign in", Next: next, Email: creds.Email, Reason: client.ReasonUnverified})
		return
	}
	c.Redirect(http.StatusFound, safeNext(next))
}

func (s *Server) logout(c *gin.Context) {
	if ok, err := s.store.Logout(c.Request.Context()); !ok {
		s.log.Warn().Err(err).Msg("Server-side logout failed")
	}
	c.Redirect(http.StatusFound, "/login")
}

func (s *Server) unauthorized(c *gin.Context) {
	s.render(c, http.StatusForbidden, "unauthorized.html", page{Title: "Not allowed"})
}

func (s *Server) dashboard(c *gin.Context) {
	sess := client.SessionFrom(c)
	perms := sess.Permissions.Slice()
	slices.Sort(perms)
	s.render(c, http.StatusOK, "dashboard.html", page{
		Title:       "Dashboard",
		Active:      "/",
		Session:     sess,
		Permissions: perms,
	})
}

type pagedCourses struct {
	Courses    []model.Course       `json:"courses"`
	Pagination *response.Pagination `json:"pagination"`
}

func (s *Server) courses(c *gin.Context) {
	var out pagedCourses
	if !s.fetch(c, "/courses?page="+pageParam(c), &out) {
		return
	}
	s.render(c, http.StatusOK, "courses.html", page{
		Title:      "Courses",
		Active:     "/courses",
		Session:    client.SessionFrom(c),
		Courses:    out.Courses,
		Pagination: out.Pagination,
	})
}

func (s *Server) course(c *gin.Context) {
	var out struct {
		Course model.Course `json:"course"`
	}
	if !s.fetch(c, "/courses/"+url.PathEscape(c.Param("id")), &out) {
		return
	}
	sess := client.SessionFrom(c)
	s.render(c, http.StatusOK, "course.html", page{
		Title:         out.Course.Title,
		Active:        "/courses",
		Session:       sess,
		Course:        &out.Course,
		CanSeeQuizzes: sess.HasPermission(model.PermQuizRead),
	})
}

func (s *Server) lesson(c *gin.Context) {
	var out struct {
		Lesson model.Lesson `json:"lesson"`
	}
	if !s.fetch(c, "/lessons/"+url.PathEscape(c.Param("id")), &out) {
		return
	}
	s.render(c, http.StatusOK, "lesson.html", page{
		Title:   out.Lesson.Title,
		Active:  "/courses",
		Session: client.SessionFrom(c),
		Lesson:  &out.Lesson,
		// Rendered by the API with raw HTML escaped.
		Content: template.HTML(out.Lesson.ContentHTML),
	})
}

func (s *Server) users(c *gin.Context) {
	var out struct {
		Users      []model.User         `json:"users"`
		Pagination *response.Pagination `json:"pagination"`
	}
	if !s.fetch(c, "/users?page="+pageParam(c), &out) {
		return
	}
	s.render(c, http.StatusOK, "users.html", page{
		Title:      "Users",
		Active:     "/users",
		Session:    client.SessionFrom(c),
		Users:      out.Users,
		Pagination: out.Pagination,
	})
}

func (s *Server) roles(c *gin.Context) {
	p, ok := s.rolesPage(c)
	if !ok {
		return
	}
	s.render(c, http.StatusOK, "roles.html", p)
}

func (s *Server) rolesPage(c *gin.Context) (page, bool) {
	sess := client.SessionFrom(c)
	p := page{
		Title:     "Roles",
		Active:    "/roles",
		Session:   sess,
		CanCreate: sess.HasPermission(model.PermRoleCreate),
	}

	var roles struct {
		Roles []model.Role `json:"roles"`
	}
	if !s.fetch(c, "/roles", &roles) {
		return p, false
	}
	p.Roles = roles.Roles

	if p.CanCreate && sess.HasPermission(model.PermPermissionRead) {
		var catalog struct {
			Permissions []model.Permission `json:"permissions"`
		}
		if !s.fetch(c, "/permissions", &catalog) {
			return p, false
		}
		p.Catalog = catalog.Permissions
	}
	return p, true
}

func (s *Server) createRole(c *gin.Context) {
	req := model.RoleRequest{
		Name:          strings.TrimSpace(c.PostForm("name")),
		Description:   strings.TrimSpace(c.PostForm("description")),
		PermissionIDs: c.PostFormArray("permissions"),
	}

	err := s.api.Do(c.Request.Context(), http.MethodPost, "/roles", req, nil)
	if err == nil {
		c.Redirect(http.StatusFound, "/roles")
		return
	}

	var apiErr *client.APIError
	if !errors.As(err, &apiErr) || apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden {
		s.fail(c, err)
		return
	}

	// Validation and name conflicts go back to the form.
	p, ok := s.rolesPage(c)
	if !ok {
		return
	}
	p.Form = req
	p.Error = apiErr.Message
	s.render(c, apiErr.Status, "roles.html", p)
}

// fetch GETs path into out, handling auth failures the way the guard does.
func (s *Server) fetch(c *gin.Context, path string, out any) bool {
	if err := s.api.Do(c.Request.Context(), http.MethodGet, path, nil, out); err != nil {
		s.fail(c, err)
		return false
	}
	return true
}

// fail maps an API error to a console response. A 401 means the cookie no
// longer authenticates, so the session is re-probed before sending the
// operator to sign in.
func (s *Server) fail(c *gin.Context, err error) {
	var apiErr *client.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case http.StatusUnauthorized:
			_, _ = s.store.RetrieveDetails(context.WithoutCancel(c.Request.Context()))
			q := url.Values{"next": {c.Request.URL.RequestURI()}}
			if apiErr.Code == string(response.ErrEmailNotVerified) {
				q.Set("reason", client.ReasonUnverified)
			}
			c.Redirect(http.StatusFound, "/login?"+q.Encode())
			return
		case http.StatusForbidden:
			c.Redirect(http.StatusFound, "/unauthorized")
			return
		case http.StatusNotFound:
			s.render(c, http.StatusNotFound, "error.html", page{Title: "Not found", Error: "That item does not exist."})
			return
		}
	}
	s.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("API request failed")
	s.render(c, http.StatusBadGateway, "error.html", page{Title: "Error", Error: "The API request failed."})
}

func pageParam(c *gin.Context) string {
	n, err := strconv.Atoi(c.Query("page"))
	if err != nil || n < 1 {
		n = 1
	}
	return strconv.Itoa(n)
}
