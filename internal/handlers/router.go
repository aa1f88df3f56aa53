package handlers

import (
	"net/http"
)

// chain applies middlewares in the given order: m1(m2(...(h)))
func chain(h http.Handler, mds ...func(next http.Handler) http.Handler) http.Handler {
	for i := len(mds) - 1; i >= 0; i-- {
		h = mds[i](h)
	}
	return h
}

func NewRouter(
	tokenProxy *TokenProxyHandler,
	auth *AuthHandler,
	products *ProductsHandler,
	mds ...func(next http.Handler) http.Handler,
) http.Handler {
	root := http.NewServeMux()

	root.Handle("/api/meli/", http.StripPrefix("/api/meli", tokenProxy.Handler()))
	root.Handle("/api/auth/", http.StripPrefix("/api/auth", auth.Handler()))
	root.Handle("/api/", http.StripPrefix("/api", products.Handler()))

	return chain(root, mds...)
}
