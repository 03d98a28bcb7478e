// internal/handler/operator.go
package handler

import (
	"context"
	"net/http"
	"strings"

	"github.com/unclebandit/outreach-engine/internal/model"
)

type operatorKey struct{}

// Operator headers are set by the authenticating proxy in front of the engine.
const (
	HeaderOperatorID    = "X-Operator-Id"
	HeaderOperatorName  = "X-Operator-Name"
	HeaderOperatorEmail = "X-Operator-Email"
)

// RequireOperator rejects requests without an operator id and stores the
// operator in the request context.
func RequireOperator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op := model.Operator{
			ID:    strings.TrimSpace(r.Header.Get(HeaderOperatorID)),
			Name:  strings.TrimSpace(r.Header.Get(HeaderOperatorName)),
			Email: strings.TrimSpace(r.Header.Get(HeaderOperatorEmail)),
		}
		if op.ID == "" {
			WriteJSON(w, http.StatusUnauthorized, errorBody{Error: "missing " + HeaderOperatorID + " header", Code: "unauthenticated"})
			return
		}
		next.ServeHTTP(w, r.WithContext(WithOperator(r.Context(), op)))
	})
}

func WithOperator(ctx context.Context, op model.Operator) context.Context {
	return context.WithValue(ctx, operatorKey{}, op)
}

// OperatorFrom returns the operator stored by RequireOperator.
func OperatorFrom(ctx context.Context) model.Operator {
	op, _ := ctx.Value(operatorKey{}).(model.Operator)
	return op
}
