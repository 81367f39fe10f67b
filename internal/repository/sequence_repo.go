package repository

import (
	"errors"

	"go-retail-pos/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SequenceRepository hands out per-(branch, doc type) document numbers.
// Next must run inside the caller's transaction: a rolled-back caller
// leaves a gap, never a duplicate.
type SequenceRepository interface {
	Next(tx *gorm.DB, branchID uuid.UUID, docType string) (int64, error)
}

type sequenceRepo struct {
	db *gorm.DB
}

func NewSequenceRepo(db *gorm.DB) SequenceRepository {
	return &sequenceRepo{db}
}

func (r *sequenceRepo) Next(tx *gorm.DB, branchID uuid.UUID, docType string) (int64, error) {
	var seq model.DocumentSequence
	err := tx.Set("gorm:query_option", "FOR UPDATE").
		First(&seq, "branch_id = ? AND doc_type = ?", branchID, docType).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		seq = model.DocumentSequence{BranchID: branchID, DocType: docType, NextNumber: 1}
		if err := tx.Create(&seq).Error; err != nil {
			return 0, err
		}
		return 1, nil
	}
	if err != nil {
		return 0, err
	}

	seq.NextNumber++
	if err := tx.Save(&seq).Error; err != nil {
		return 0, err
	}
	return seq.NextNumber, nil
}
