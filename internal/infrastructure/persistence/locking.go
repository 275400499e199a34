package persistence

import (
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// forUpdate adds SELECT ... FOR UPDATE. Dialects without row locks (sqlite)
// drop the clause and rely on their own writer serialisation.
func forUpdate(db *gorm.DB) *gorm.DB {
	return db.Clauses(clause.Locking{Strength: "UPDATE"})
}

// first loads a single row and maps a miss onto shared.ErrNotFound
func first(db *gorm.DB, dest any) error {
	return translateError(db.First(dest).Error)
}
