package server

import (
	"fmt"
	"net"
	"path/filepath"
	"strings"

	"github.com/jonathan/webfont-splitter/internal/fallback"
	"github.com/jonathan/webfont-splitter/internal/refdata"
)

// roots confines the local paths a run request may name
type roots struct {
	dirs []string
	// real holds dirs with symlinks resolved, index for index.
	real []string
}

func newRoots(dirs []string) (roots, error) {
	var r roots
	for _, d := range dirs {
		abs, err := filepath.Abs(d)
		if err != nil {
			return r, fmt.Errorf("invalid root %s: %w", d, err)
		}
		real, err := filepath.EvalSymlinks(abs)
		if err != nil {
			real = abs
		}
		r.dirs = append(r.dirs, abs)
		r.real = append(r.real, real)
	}
	return r, nil
}

func within(dir, p string) bool {
	rel, err := filepath.Rel(dir, p)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// confine resolves p against the first root and checks that it stays
// inside one of the roots, following symlinks for paths that exist.
func (r roots) confine(field, p string) (string, error) {
	if len(r.dirs) == 0 {
		return "", &ErrValidation{Field: field, Message: "local paths are not accepted by this server"}
	}
	if !filepath.IsAbs(p) {
		p = filepath.Join(r.dirs[0], p)
	}
	p = filepath.Clean(p)

	inside := false
	for _, d := range r.dirs {
		if within(d, p) {
			inside = true
			break
		}
	}
	if inside {
		if real, err := filepath.EvalSymlinks(p); err == nil {
			inside = false
			for _, d := range r.real {
				if within(d, real) {
					inside = true
					break
				}
			}
		}
	}
	if !inside {
		return "", &ErrValidation{Field: field, Message: fmt.Sprintf("%s is outside the server's roots", p)}
	}
	return p, nil
}

func isRemote(ref string) bool {
	return strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://")
}

// confineRequest rewrites every local path in req to a checked absolute path
func (r roots) confineRequest(req RunRequest) (RunRequest, error) {
	fonts := make([]string, len(req.Fonts))
	for i, ref := range req.Fonts {
		if isRemote(ref) || fallback.IsReserved(ref) {
			fonts[i] = ref
			continue
		}
		p, err := r.confine("fonts", ref)
		if err != nil {
			return req, err
		}
		fonts[i] = p
	}
	req.Fonts = fonts

	if req.Webroot != "" {
		p, err := r.confine("webroot", req.Webroot)
		if err != nil {
			return req, err
		}
		req.Webroot = p
	}
	if ref := req.ReferenceData; ref != "" && ref != refdata.BundledRef && !isRemote(ref) {
		p, err := r.confine("reference_data", ref)
		if err != nil {
			return req, err
		}
		req.ReferenceData = p
	}
	return req, nil
}

// isLoopback reports whether host only accepts local connections
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
