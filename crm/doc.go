// Package crm declares the entities of the customer portal and wires their
// cached repositories.
//
// Entities decode the CRM documents directly; integer fields use Int since
// the CRM sends numbers as strings and "0" or "" for missing references.
//
//	repos := crm.NewRepositories(pestroutes.New(cfg.CRM), svc, crm.Config{})
//	appt, err := repos.Appointments.Office(1).
//		WithRelated("customer", "documents").
//		Find(ctx, 42)
//	docs, _ := entity.Many[*crm.Document](appt, "documents")
//
// Reference data (service types, offices) is cached for ReferenceTTL, spot
// searches for SpotSearchTTL and everything else for the repositorycache
// default. Spot searches built with SpotsNear are also tagged with GeoTag so
// a booking can flush the spots around its location:
//
//	repos.Spots.InvalidateTags(ctx, crm.GeoTag(lat, lng))
package crm
