package http

import "github.com/labstack/echo/v4"

// Handler mounts a set of routes on the server's Echo instance.
type Handler interface {
	RegisterRoutes(e *echo.Echo)
}
