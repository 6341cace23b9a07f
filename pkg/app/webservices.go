package app

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/womat/debug"
)

// runWebServer starts the applications web server and listens for web requests.
//  It's designed to run in a separate go function to not block the main go function.
//  e.g.: go runWebServer()
//  See app.Run()
func (app *App) runWebServer() {
	err := app.web.Listen(app.urlParsed.Host)
	debug.ErrorLog.Print(err)
}

// HandleData returns the last received bytes.
func (app *App) HandleData() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request data")

		return ctx.JSON(app.recent.data())
	}
}

// HandleStats returns the link statistics.
func (app *App) HandleStats() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request stats")

		return ctx.JSON(app.stats())
	}
}

// HandleSend queues the request body for transmission.
func (app *App) HandleSend() fiber.Handler {
	return func(ctx *fiber.Ctx) error {
		debug.InfoLog.Print("web request send")

		if app.transmitter == nil {
			return fiber.NewError(http.StatusNotImplemented, "no transmit path")
		}

		body := ctx.Body()
		if len(body) == 0 {
			return fiber.NewError(http.StatusBadRequest, "empty body")
		}

		// the body buffer is reused by fiber after the handler returns
		data := make([]byte, len(body))
		copy(data, body)
		app.transmitter.PutArray(data)

		ctx.Status(http.StatusAccepted)
		return ctx.JSON(fiber.Map{"queued": len(data)})
	}
}
