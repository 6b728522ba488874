package mw

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/MrSnakeDoc/vodmark/internal/logger"
	"github.com/MrSnakeDoc/vodmark/internal/utils"
)

// hostList matches Host headers against exact names and "*.suffix"
// wildcards. Ports and letter case are ignored.
type hostList struct {
	exact    map[string]struct{}
	suffixes []string
}

func newHostList(patterns []string) hostList {
	hl := hostList{exact: make(map[string]struct{})}
	for _, p := range patterns {
		p = strings.ToLower(strings.TrimSpace(p))
		switch {
		case p == "":
		case strings.HasPrefix(p, "*."):
			hl.suffixes = append(hl.suffixes, p[1:])
		default:
			hl.exact[p] = struct{}{}
		}
	}
	return hl
}

func (hl hostList) empty() bool {
	return len(hl.exact) == 0 && len(hl.suffixes) == 0
}

func (hl hostList) allow(host string) bool {
	host = strings.ToLower(utils.ParseHostNoPort(host))
	if _, ok := hl.exact[host]; ok {
		return true
	}
	for _, s := range hl.suffixes {
		if strings.HasSuffix(host, s) {
			return true
		}
	}
	return false
}

// EnforceHost refuses requests whose Host header is not listed. An empty
// list lets everything through.
func EnforceHost(allowedHosts []string, log logger.Logger) func(http.Handler) http.Handler {
	hosts := newHostList(allowedHosts)
	if hosts.empty() {
		return passthrough
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !hosts.allow(r.Host) {
				log.Debug("host rejected",
					logger.String("host", r.Host),
					logger.String("path", r.URL.Path))
				reject(w, http.StatusForbidden, "host not allowed")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func passthrough(next http.Handler) http.Handler { return next }

// reject writes the JSON error body the API handlers use.
func reject(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": msg})
}
