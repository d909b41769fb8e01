package web

import "github.com/skekre98/chatlog/core"

type Options struct {
	// Called during Configure to register routes.
	Routes []func(r Router)
	// Optional additional middlewares, run after the built-in ones.
	Middlewares []Handler
	// Observers see every request on the application listener.
	Observers []core.RequestObserver
}

type Option func(*Options)

func WithRoutes(f func(r Router)) Option {
	return func(o *Options) { o.Routes = append(o.Routes, f) }
}

func WithMiddlewares(m ...Handler) Option {
	return func(o *Options) { o.Middlewares = append(o.Middlewares, m...) }
}

func WithObservers(obs ...core.RequestObserver) Option {
	return func(o *Options) { o.Observers = append(o.Observers, obs...) }
}
