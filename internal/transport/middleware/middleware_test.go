package middleware_test

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	errors "github.com/frahmantamala/pix-deposit/internal"
	"github.com/frahmantamala/pix-deposit/internal/session"
	"github.com/frahmantamala/pix-deposit/internal/transport/middleware"
	"github.com/frahmantamala/pix-deposit/pkg/logger"
)

var testLogger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
})

var _ = Describe("CORS", func() {
	It("echoes an allowed origin with credentials", func() {
		h := middleware.CORS([]string{"https://pay.example.com/"})(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://pay.example.com")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://pay.example.com"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(Equal("true"))
	})

	It("allows any origin without credentials for a wildcard", func() {
		h := middleware.CORS([]string{"*"})(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://elsewhere.example")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("*"))
		Expect(rec.Header().Get("Access-Control-Allow-Credentials")).To(BeEmpty())
		Expect(rec.Header().Values("Vary")).To(ContainElement("Origin"))
	})

	It("answers a preflight with a cacheable grant", func() {
		h := middleware.CORS([]string{"https://pay.example.com"})(okHandler)
		req := httptest.NewRequest(http.MethodOptions, "/", nil)
		req.Header.Set("Origin", "https://pay.example.com")
		req.Header.Set("Access-Control-Request-Method", http.MethodPost)
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(BeElementOf(http.StatusOK, http.StatusNoContent))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(Equal("https://pay.example.com"))
		Expect(rec.Header().Get("Access-Control-Allow-Methods")).To(ContainSubstring(http.MethodPost))
		Expect(rec.Header().Get("Access-Control-Max-Age")).To(Equal("300"))
	})

	It("adds no headers when no origin is configured", func() {
		h := middleware.CORS(nil)(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://pay.example.com")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})

	It("does not grant unknown origins", func() {
		h := middleware.CORS([]string{"https://pay.example.com"})(okHandler)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Origin", "https://evil.example")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		Expect(rec.Header().Get("Access-Control-Allow-Origin")).To(BeEmpty())
	})
})

var _ = Describe("Session", func() {
	It("puts the cookie's store key on the request context", func() {
		manager := session.NewManager("0123456789abcdef0123456789abcdef", "", false, testLogger)
		bound := httptest.NewRecorder()
		Expect(manager.Bind(bound, httptest.NewRequest(http.MethodGet, "/", nil), "key-1")).To(Succeed())

		var seen string
		h := middleware.Session(manager)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = errors.SessionKeyFromContext(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		for _, c := range bound.Result().Cookies() {
			req.AddCookie(c)
		}

		h.ServeHTTP(httptest.NewRecorder(), req)

		Expect(seen).To(Equal("key-1"))
	})
})

var _ = Describe("RequestID", func() {
	It("keeps an incoming trace id", func() {
		var seen string
		h := middleware.RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			seen = logger.TraceID(r.Context())
		}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("X-Trace-ID", "trace-1")
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, req)

		Expect(seen).To(Equal("trace-1"))
		Expect(rec.Header().Get("X-Trace-ID")).To(Equal("trace-1"))
	})
})

var _ = Describe("RecoveryMiddleware", func() {
	It("turns a panic into a 500 error body", func() {
		h := middleware.RecoveryMiddleware(testLogger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Code).To(Equal(http.StatusInternalServerError))
		Expect(rec.Body.String()).To(ContainSubstring("INTERNAL_ERROR"))
		Expect(rec.Body.String()).NotTo(ContainSubstring("boom"))
	})
})

var _ = Describe("LoggingMiddleware", func() {
	It("passes flushes through to the underlying writer", func() {
		h := middleware.LoggingMiddleware(testLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "text/event-stream")
			flusher, ok := w.(http.Flusher)
			Expect(ok).To(BeTrue())
			_, _ = w.Write([]byte("event: snapshot\n\n"))
			flusher.Flush()
		}))
		rec := httptest.NewRecorder()

		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

		Expect(rec.Flushed).To(BeTrue())
		Expect(rec.Body.String()).To(Equal("event: snapshot\n\n"))
	})
})

var _ = Describe("OpenAPIValidator", func() {
	const doc = `
openapi: 3.0.3
info:
  title: test
  version: "1"
paths:
  /items/{id}:
    get:
      parameters:
        - name: id
          in: path
          required: true
          schema:
            type: integer
      responses:
        "200":
          description: ok
`

	var h http.Handler

	BeforeEach(func() {
		spec, err := middleware.LoadOpenAPI([]byte(doc))
		Expect(err).NotTo(HaveOccurred())
		validator, err := middleware.OpenAPIValidator(spec, testLogger)
		Expect(err).NotTo(HaveOccurred())
		h = validator(okHandler)
	})

	serve := func(method, target string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(method, target, nil))
		return rec.Code
	}

	It("lets documented requests through", func() {
		Expect(serve(http.MethodGet, "/items/42")).To(Equal(http.StatusOK))
	})

	It("rejects invalid parameters", func() {
		Expect(serve(http.MethodGet, "/items/abc")).To(Equal(http.StatusBadRequest))
	})

	It("rejects undocumented methods", func() {
		Expect(serve(http.MethodPost, "/items/42")).To(Equal(http.StatusMethodNotAllowed))
	})

	It("ignores undocumented paths", func() {
		Expect(serve(http.MethodGet, "/elsewhere")).To(Equal(http.StatusOK))
	})

	It("refuses a broken document", func() {
		_, err := middleware.LoadOpenAPI([]byte("openapi: [not a document"))
		Expect(err).To(HaveOccurred())
	})
})
