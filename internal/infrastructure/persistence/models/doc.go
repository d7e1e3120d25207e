// Package models contains GORM persistence models. They are kept apart from
// the domain types so that the domain stays free of ORM tags; repositories
// map between the two.
package models
