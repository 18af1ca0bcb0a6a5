package graph

import (
	graphql "github.com/graph-gophers/graphql-go"
	gqlotel "github.com/graph-gophers/graphql-go/trace/otel"
)

const schemaSDL = `
schema {
	query: Query
	mutation: Mutation
}

type Query {
	me: UserType
	user(id: ID!): UserType
	users: [UserType!]!
}

type Mutation {
	register(userData: UserInput!): UserType!
	updateUser(userData: UserUpdateInput!): UserType!
	login(email: String!, password: String!): TokenResponse!
	resetPassword(email: String!, newPassword: String!): Boolean!
	logout(refreshToken: String!): Boolean!
}

type UserType {
	id: ID!
	email: String!
	first_name: String
	last_name: String
}

type TokenResponse {
	access_token: String!
	refresh_token: String!
	token_type: String!
}

input UserInput {
	email: String!
	password: String!
	first_name: String
	last_name: String
}

input UserUpdateInput {
	id: ID!
	first_name: String
	last_name: String
	email: String
}
`

// maxQueryDepth bounds nested selections.
const maxQueryDepth = 6

// NewSchema parses the user API schema bound to the root resolver.
func NewSchema() *graphql.Schema {
	return graphql.MustParseSchema(schemaSDL, &Resolver{},
		graphql.MaxDepth(maxQueryDepth),
		graphql.Tracer(gqlotel.DefaultTracer()),
	)
}
