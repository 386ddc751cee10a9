package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/graphql-go/graphql"
)

// buildSchema creates the GraphQL schema wired to our services.
func buildSchema(deps *Dependencies) (graphql.Schema, error) {
	geoPointType := graphql.NewObject(graphql.ObjectConfig{
		Name: "GeoPoint",
		Fields: graphql.Fields{
			"lat": &graphql.Field{Type: graphql.Float},
			"lon": &graphql.Field{Type: graphql.Float},
		},
	})

	siteType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Site",
		Fields: graphql.Fields{
			"id":           &graphql.Field{Type: graphql.String},
			"slug":         &graphql.Field{Type: graphql.String},
			"name":         &graphql.Field{Type: graphql.String},
			"description":  &graphql.Field{Type: graphql.String},
			"location":     &graphql.Field{Type: geoPointType},
			"municipality": &graphql.Field{Type: graphql.String},
		},
	})

	anchorType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Anchor",
		Fields: graphql.Fields{
			"location":         &graphql.Field{Type: geoPointType},
			"elevation_meters": &graphql.Field{Type: graphql.Float},
			"scale":            &graphql.Field{Type: graphql.Float},
		},
	})

	experienceType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Experience",
		Fields: graphql.Fields{
			"id":               &graphql.Field{Type: graphql.String},
			"site_id":          &graphql.Field{Type: graphql.String},
			"slug":             &graphql.Field{Type: graphql.String},
			"title":            &graphql.Field{Type: graphql.String},
			"summary":          &graphql.Field{Type: graphql.String},
			"anchor":           &graphql.Field{Type: anchorType},
			"content_url":      &graphql.Field{Type: graphql.String},
			"duration_seconds": &graphql.Field{Type: graphql.Int},
			"published":        &graphql.Field{Type: graphql.Boolean},
			"distance_meters":  &graphql.Field{Type: graphql.Float},
		},
	})

	positionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "DevicePosition",
		Fields: graphql.Fields{
			"source":   &graphql.Field{Type: graphql.String},
			"usable":   &graphql.Field{Type: graphql.Boolean},
			"location": &graphql.Field{Type: geoPointType},
			"accuracy": &graphql.Field{Type: graphql.Float},
			"quality":  &graphql.Field{Type: graphql.String},
			"stable":   &graphql.Field{Type: graphql.Boolean},
		},
	})

	sessionType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Session",
		Fields: graphql.Fields{
			"session_id":     &graphql.Field{Type: graphql.String},
			"device_id":      &graphql.Field{Type: graphql.String},
			"experience_id":  &graphql.Field{Type: graphql.String},
			"state":          &graphql.Field{Type: graphql.String},
			"placed":         &graphql.Field{Type: graphql.Boolean},
			"content_ready":  &graphql.Field{Type: graphql.Boolean},
			"engagement_met": &graphql.Field{Type: graphql.Boolean},
			"content_error":  &graphql.Field{Type: graphql.String},
		},
	})

	queryType := graphql.NewObject(graphql.ObjectConfig{
		Name: "Query",
		Fields: graphql.Fields{
			"sites": &graphql.Field{
				Type:        graphql.NewList(siteType),
				Description: "List all heritage sites",
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					return deps.Catalog.ListSites(p.Context)
				},
			},
			"experiencesNearby": &graphql.Field{
				Type:        graphql.NewList(experienceType),
				Description: "Find anchored experiences near a location",
				Args: graphql.FieldConfigArgument{
					"lat":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"lon":    &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.Float)},
					"radius": &graphql.ArgumentConfig{Type: graphql.Float, DefaultValue: 500.0},
					"limit":  &graphql.ArgumentConfig{Type: graphql.Int, DefaultValue: 20},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					lat := p.Args["lat"].(float64)
					lon := p.Args["lon"].(float64)
					radius := p.Args["radius"].(float64)
					limit := p.Args["limit"].(int)
					return deps.Catalog.FindNearby(p.Context, lat, lon, radius, limit)
				},
			},
			"experience": &graphql.Field{
				Type:        experienceType,
				Description: "Get an experience by ID",
				Args: graphql.FieldConfigArgument{
					"id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					id := p.Args["id"].(string)
					return deps.Catalog.GetExperience(p.Context, id)
				},
			},
			"siteExperiences": &graphql.Field{
				Type:        graphql.NewList(experienceType),
				Description: "List experiences published at a site",
				Args: graphql.FieldConfigArgument{
					"site_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					siteID := p.Args["site_id"].(string)
					return deps.Catalog.ListBySite(p.Context, siteID)
				},
			},
			"devicePosition": &graphql.Field{
				Type:        positionType,
				Description: "Best available position for a device",
				Args: graphql.FieldConfigArgument{
					"device_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					deviceID := p.Args["device_id"].(string)
					best := deps.Sessions.Device(deviceID).BestPosition()
					return map[string]interface{}{
						"source":   best.Source.String(),
						"usable":   best.Usable(),
						"location": best.Position.Location,
						"accuracy": best.Position.AccuracyMeters,
						"quality":  best.Position.Quality.String(),
						"stable":   best.Position.Stable,
					}, nil
				},
			},
			"session": &graphql.Field{
				Type:        sessionType,
				Description: "Current session snapshot for a device",
				Args: graphql.FieldConfigArgument{
					"device_id": &graphql.ArgumentConfig{Type: graphql.NewNonNull(graphql.String)},
				},
				Resolve: func(p graphql.ResolveParams) (interface{}, error) {
					deviceID := p.Args["device_id"].(string)
					snap := deps.Sessions.Snapshot(deviceID)
					return map[string]interface{}{
						"session_id":     snap.SessionID,
						"device_id":      snap.DeviceID,
						"experience_id":  snap.ExperienceID,
						"state":          snap.State.String(),
						"placed":         snap.Placed,
						"content_ready":  snap.ContentReady,
						"engagement_met": snap.EngagementMet,
						"content_error":  snap.ContentError,
					}, nil
				},
			},
		},
	})

	return graphql.NewSchema(graphql.SchemaConfig{
		Query: queryType,
	})
}

// GraphQLHandler serves the GraphQL endpoint.
func GraphQLHandler(deps *Dependencies) fiber.Handler {
	schema, err := buildSchema(deps)
	if err != nil {
		// This would be a programming error in the schema definition
		panic("graphql schema build: " + err.Error())
	}

	type gqlRequest struct {
		Query         string                 `json:"query"`
		OperationName string                 `json:"operationName"`
		Variables     map[string]interface{} `json:"variables"`
	}

	return func(c *fiber.Ctx) error {
		var req gqlRequest
		if err := c.BodyParser(&req); err != nil {
			return c.Status(400).JSON(fiber.Map{"error": "invalid request body"})
		}

		result := graphql.Do(graphql.Params{
			Schema:         schema,
			RequestString:  req.Query,
			VariableValues: req.Variables,
			OperationName:  req.OperationName,
			Context:        c.Context(),
		})

		return c.JSON(result)
	}
}
