package graph

import (
	"context"

	graphql "github.com/graph-gophers/graphql-go"

	"userapi/internal/model"
	"userapi/internal/service"
)

// Resolver is the root of both Query and Mutation. It is stateless: every
// field pulls the RequestContext from ctx and dispatches with it.
type Resolver struct{}

func (r *Resolver) Me(ctx context.Context) (*UserResolver, error) {
	rc, err := fromContext(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	view, err := me(ctx, rc)
	return newUserResolver(view), wrap(err)
}

func (r *Resolver) User(ctx context.Context, args struct{ ID graphql.ID }) (*UserResolver, error) {
	rc, err := fromContext(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	view, err := getUser(ctx, rc, string(args.ID))
	return newUserResolver(view), wrap(err)
}

func (r *Resolver) Users(ctx context.Context) ([]*UserResolver, error) {
	rc, err := fromContext(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	views, err := listUsers(ctx, rc)
	if err != nil {
		return nil, wrap(err)
	}
	out := make([]*UserResolver, 0, len(views))
	for i := range views {
		out = append(out, newUserResolver(&views[i]))
	}
	return out, nil
}

func (r *Resolver) Register(ctx context.Context, args struct{ UserData UserInput }) (*UserResolver, error) {
	rc, err := fromContext(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	view, err := register(ctx, rc, args.UserData)
	if err != nil {
		return nil, wrap(err)
	}
	return newUserResolver(view), nil
}

func (r *Resolver) UpdateUser(ctx context.Context, args struct{ UserData updateArgs }) (*UserResolver, error) {
	rc, err := fromContext(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	view, err := updateUser(ctx, rc, UserUpdateInput{
		ID:        string(args.UserData.ID),
		FirstName: args.UserData.FirstName,
		LastName:  args.UserData.LastName,
		Email:     args.UserData.Email,
	})
	if err != nil {
		return nil, wrap(err)
	}
	return newUserResolver(view), nil
}

func (r *Resolver) Login(ctx context.Context, args struct {
	Email    string
	Password string
}) (*TokenResolver, error) {
	rc, err := fromContext(ctx)
	if err != nil {
		return nil, wrap(err)
	}
	pair, err := login(ctx, rc, args.Email, args.Password)
	if err != nil {
		return nil, wrap(err)
	}
	return &TokenResolver{pair: *pair}, nil
}

func (r *Resolver) ResetPassword(ctx context.Context, args struct {
	Email       string
	NewPassword string
}) (bool, error) {
	rc, err := fromContext(ctx)
	if err != nil {
		return false, wrap(err)
	}
	ok, err := resetPassword(ctx, rc, args.Email, args.NewPassword)
	return ok, wrap(err)
}

func (r *Resolver) Logout(ctx context.Context, args struct{ RefreshToken string }) (bool, error) {
	rc, err := fromContext(ctx)
	if err != nil {
		return false, wrap(err)
	}
	ok, err := logout(ctx, rc, args.RefreshToken)
	return ok, wrap(err)
}

type updateArgs struct {
	ID        graphql.ID
	FirstName *string
	LastName  *string
	Email     *string
}

// UserResolver resolves UserType.
type UserResolver struct {
	view model.UserView
}

func newUserResolver(view *model.UserView) *UserResolver {
	if view == nil {
		return nil
	}
	return &UserResolver{view: *view}
}

func (u *UserResolver) ID() graphql.ID { return graphql.ID(u.view.ID.String()) }

func (u *UserResolver) Email() string { return u.view.Email }

func (u *UserResolver) FirstName() *string { return optional(u.view.FirstName) }

func (u *UserResolver) LastName() *string { return optional(u.view.LastName) }

// TokenResolver resolves TokenResponse.
type TokenResolver struct {
	pair service.TokenPair
}

func (t *TokenResolver) AccessToken() string { return t.pair.AccessToken }

func (t *TokenResolver) RefreshToken() string { return t.pair.RefreshToken }

func (t *TokenResolver) TokenType() string { return "bearer" }

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
