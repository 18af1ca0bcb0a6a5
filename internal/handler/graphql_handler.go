package handler

import (
	"net/http"

	graphql "github.com/graph-gophers/graphql-go"
	"github.com/labstack/echo/v4"

	"userapi/internal/errors"
	"userapi/internal/graph"
	"userapi/internal/middleware"
	"userapi/internal/service"
)

// GraphQLHandler executes GraphQL requests against the user schema.
type GraphQLHandler struct {
	schema      *graphql.Schema
	authService service.AuthService
	userService service.UserService
}

// NewGraphQLHandler creates a GraphQL handler.
func NewGraphQLHandler(schema *graphql.Schema, authService service.AuthService, userService service.UserService) *GraphQLHandler {
	return &GraphQLHandler{schema: schema, authService: authService, userService: userService}
}

// GraphQLRequest is the standard GraphQL-over-HTTP payload.
type GraphQLRequest struct {
	Query         string                 `json:"query"`
	OperationName string                 `json:"operationName"`
	Variables     map[string]interface{} `json:"variables"`
}

// Serve executes one GraphQL request. Resolver errors are reported in the
// response body with a 200 status, as GraphQL clients expect.
func (h *GraphQLHandler) Serve(c echo.Context) error {
	var req GraphQLRequest
	if err := c.Bind(&req); err != nil || req.Query == "" {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid graphql request",
			Code:  "INVALID_REQUEST",
		})
	}

	rc := graph.NewRequestContext(h.authService, h.userService, middleware.ClaimsFrom(c))
	ctx := graph.WithRequestContext(c.Request().Context(), rc)
	return c.JSON(http.StatusOK, h.schema.Exec(ctx, req.Query, req.OperationName, req.Variables))
}
