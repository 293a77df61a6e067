package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/emotalk/backend/internal/handler/frame"
	"github.com/zhouzirui/emotalk/backend/internal/handler/persona"
	"github.com/zhouzirui/emotalk/backend/internal/handler/relay"
	middlewarePkg "github.com/zhouzirui/emotalk/backend/internal/middleware"
	personaModel "github.com/zhouzirui/emotalk/backend/internal/model/persona"
	"github.com/zhouzirui/emotalk/backend/pkg/utils"
)

// Options 描述路由依赖。Frame 为空时 upload_frame 返回 503。
type Options struct {
	Personas      personaModel.Store
	Relay         relay.Relayer
	Frame         frame.Classifier
	FrameMaxBytes int64
}

// NewRouter wires HTTP routes to core services.
func NewRouter(opts Options) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS)

	r.Get("/", handleWelcome)

	r.Route("/v1", func(api chi.Router) {
		api.Get("/", handleWelcome)

		if opts.Personas != nil {
			persona.New(opts.Personas).RegisterRoutes(api)
		}

		if opts.Relay != nil {
			relay.New(opts.Relay).RegisterRoutes(api)
		}

		if opts.Frame != nil {
			frame.New(opts.Frame, opts.FrameMaxBytes).RegisterRoutes(api)
		} else {
			api.Post("/upload_frame", func(w http.ResponseWriter, _ *http.Request) {
				utils.RespondError(w, http.StatusServiceUnavailable, "frame classifier unavailable")
			})
		}
	})

	return r
}

func handleWelcome(w http.ResponseWriter, _ *http.Request) {
	utils.RespondMessage(w, http.StatusOK, "emotalk backend is running")
}
