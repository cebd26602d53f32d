// Package portaltest provides an in-process fake of the Diftar portal.
package portaltest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/JakeFAU/diftar2energyid/internal/waste"
)

const cookieName = ".ASPXAUTH"

// Server fakes the logon and listing endpoints.
type Server struct {
	*httptest.Server

	Username string
	Password string
	Rows     []waste.RawRow
	// ListingStatus overrides the listing response status when non-zero.
	ListingStatus int

	mu       sync.Mutex
	logins   []map[string]string
	listings []map[string]string
}

// New starts a fake portal accepting the given account and serving rows.
func New(username, password string, rows []waste.RawRow) *Server {
	s := &Server{Username: username, Password: password, Rows: rows}
	mux := http.NewServeMux()
	mux.HandleFunc("/Account/Logon", s.logon)
	mux.HandleFunc("/Aansluitpunten", s.home)
	mux.HandleFunc("/Aansluitpunten/ShowResultsVerrichtingen", s.listing)
	s.Server = httptest.NewServer(mux)
	return s
}

func (s *Server) logon(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		_, _ = w.Write([]byte("<form>logon</form>"))
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	form := map[string]string{}
	for k := range r.PostForm {
		form[k] = r.PostForm.Get(k)
	}
	s.mu.Lock()
	s.logins = append(s.logins, form)
	s.mu.Unlock()

	if form["Identifier"] != s.Username || form["AuthenticationValue"] != s.Password {
		// The real portal answers a bad password by showing the form again.
		http.Redirect(w, r, "/Account/Logon?failed=1", http.StatusFound)
		return
	}
	http.SetCookie(w, &http.Cookie{Name: cookieName, Value: "session-token", Path: "/"})
	http.Redirect(w, r, "/Aansluitpunten", http.StatusFound)
}

func (s *Server) home(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("<html>dashboard</html>"))
}

func (s *Server) listing(w http.ResponseWriter, r *http.Request) {
	query := map[string]string{}
	for k := range r.URL.Query() {
		query[k] = r.URL.Query().Get(k)
	}
	s.mu.Lock()
	s.listings = append(s.listings, query)
	s.mu.Unlock()

	if c, err := r.Cookie(cookieName); err != nil || c.Value != "session-token" {
		http.Redirect(w, r, "/Account/Logon", http.StatusFound)
		return
	}
	if s.ListingStatus != 0 {
		w.WriteHeader(s.ListingStatus)
		return
	}
	rows := s.Rows
	if rows == nil {
		rows = []waste.RawRow{}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"sEcho":                1,
		"iTotalRecords":        len(rows),
		"iTotalDisplayRecords": len(rows),
		"aaData":               rows,
	})
}

// Logins returns the submitted login forms.
func (s *Server) Logins() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.logins...)
}

// Listings returns the query parameters of every listing request.
func (s *Server) Listings() []map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]map[string]string(nil), s.listings...)
}
