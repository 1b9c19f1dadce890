// Package admin exposes a scheduler to operators over HTTP.
//
// Router builds a chi router with endpoints to inspect, wake and remove topic
// handlers, provision topics and submit messages. Responses use a JSON
// envelope with data, meta and error fields. Server runs any http.Handler
// with graceful shutdown when its context is cancelled.
//
//	router := admin.Router(s,
//	    admin.WithLogger(log),
//	    admin.WithHealthChecks(redis.Healthcheck(client)),
//	)
//	srv := admin.NewServerFromConfig(cfg, admin.WithServerLogger(log))
//	if err := srv.Run(ctx, router); err != nil {
//	    return err
//	}
//
// Waking is advisory: POST /handlers/{id}/wake returns 204 even for unknown
// or already awake handlers.
package admin
