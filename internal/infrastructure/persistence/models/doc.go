// Package models contains GORM persistence models that map to database tables.
// They are kept separate from domain entities so the domain layer stays free of
// ORM tags; each model converts with ToDomain and a matching FromDomain constructor.
//
// - base.go: AggregateModel, the columns shared by aggregate tables
// - barcode.go: barcode configuration and registry models
package models
