package i18n

import "net/http"

// Middleware puts a translator into every request context. The language
// comes from the "lang" query parameter, then the Accept-Language header,
// then the catalog default.
func (c *Catalog) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var langs []string
		if q := r.URL.Query().Get("lang"); q != "" {
			langs = append(langs, q)
		}
		if h := r.Header.Get("Accept-Language"); h != "" {
			langs = append(langs, h)
		}
		ctx := WithTranslator(r.Context(), c.Translator(langs...))
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
