// Package main PopGraph Generation API
//
//	@title						PopGraph Generation API
//	@version					1.0
//	@description				Tier-quota'd AI image generation with batch variants and durable delivery.
//
//	@host						localhost:8080
//	@BasePath					/api/v1
//
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"
//
//	@tag.name					generation
//	@tag.description			Image generation and quota
//
//	@tag.name					admin
//	@tag.description			Operator endpoints
package main
