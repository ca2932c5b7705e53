package server

import (
	"net/http"
	"strings"
)

// MethodRouter maps HTTP methods to handlers
type MethodRouter map[string]http.HandlerFunc

// RouteByMethod dispatches on the request method, answering 405 for
// anything the router does not carry
func RouteByMethod(w http.ResponseWriter, r *http.Request, routes MethodRouter) {
	handler, ok := routes[r.Method]
	if !ok {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	handler(w, r)
}

// RouteResourceCollection handles the list + create pattern on a
// collection path: GET -> list, POST -> create
func RouteResourceCollection(w http.ResponseWriter, r *http.Request, list, create http.HandlerFunc) {
	routes := make(MethodRouter)
	if list != nil {
		routes[http.MethodGet] = list
	}
	if create != nil {
		routes[http.MethodPost] = create
	}
	RouteByMethod(w, r, routes)
}

// RouteResourceItem handles the get + update + delete pattern on an item
// path: GET -> get, PUT -> update, DELETE -> del
func RouteResourceItem(w http.ResponseWriter, r *http.Request, get, update, del http.HandlerFunc) {
	routes := make(MethodRouter)
	if get != nil {
		routes[http.MethodGet] = get
	}
	if update != nil {
		routes[http.MethodPut] = update
	}
	if del != nil {
		routes[http.MethodDelete] = del
	}
	RouteByMethod(w, r, routes)
}

// PathSuffixRouter pairs a path suffix with its handler
type PathSuffixRouter struct {
	Suffix  string
	Handler http.HandlerFunc
}

// RouteByPathSuffix dispatches subresource paths under prefix by their
// suffix, such as /api/images/{uuid}/inspect. Returns true when a route
// matched, leaving unmatched paths for the caller's item routing.
func RouteByPathSuffix(w http.ResponseWriter, r *http.Request, prefix string, routes []PathSuffixRouter) bool {
	path := r.URL.Path
	if len(path) <= len(prefix) {
		return false
	}

	for _, route := range routes {
		if strings.HasSuffix(path[len(prefix):], route.Suffix) {
			route.Handler(w, r)
			return true
		}
	}
	return false
}
