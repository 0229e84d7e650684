package controllers

import (
	"context"
	"html/template"
	"net/http"

	"github.com/lastcall-app/lastcall-backend/api/responses"
	pkgerrors "github.com/lastcall-app/lastcall-backend/pkg/errors"
	"github.com/lastcall-app/lastcall-backend/pkg/logger"
)

type OptOutService interface {
	OptOut(ctx context.Context, token string) error
}

var optOutPage = template.Must(template.New("optout").Parse(`<!doctype html>
<html lang="en">
<head><meta charset="utf-8"><title>{{.Title}}</title></head>
<body style="font-family: sans-serif; max-width: 32rem; margin: 4rem auto; text-align: center;">
<h1>{{.Title}}</h1>
<p>{{.Message}}</p>
</body>
</html>
`))

type optOutView struct {
	Title   string
	Message string
}

// CartOptOut is the link target in reminder emails. It renders a page rather
// than JSON since it is opened from a mail client.
func CartOptOut(svc OptOutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		err := svc.OptOut(ctx, r.URL.Query().Get("token"))
		switch {
		case err == nil:
			responses.WriteHTML(w, http.StatusOK, optOutPage, optOutView{
				Title:   "You're unsubscribed",
				Message: "We won't send any more reminders about this cart.",
			})
		case pkgerrors.HasCode(err, pkgerrors.CodeNotFound), pkgerrors.HasCode(err, pkgerrors.CodeValidation):
			responses.WriteHTML(w, http.StatusNotFound, optOutPage, optOutView{
				Title:   "Link not recognised",
				Message: "This unsubscribe link is invalid or has already expired.",
			})
		default:
			logg.Error(ctx, "cart.opt_out_failed", err)
			responses.WriteHTML(w, http.StatusInternalServerError, optOutPage, optOutView{
				Title:   "Something went wrong",
				Message: "Please try the link again in a few minutes.",
			})
		}
	}
}
