package churches

import (
	"errors"

	"github.com/covenant-hq/church-backend/internal/models"
)

var (
	ErrInvalidType       = errors.New("church type must be Headquarters, Branch or Independent")
	ErrBranchNeedsParent = errors.New("a branch must have a parent church")
	ErrParentNotHQ       = errors.New("a branch's parent must be a headquarters church")
	ErrUnexpectedParent  = errors.New("only a branch may have a parent church")
	ErrSelfParent        = errors.New("a church cannot be its own parent")
	ErrHQHasBranches     = errors.New("a headquarters with branches cannot change type")
)

// ValidateHierarchy checks the headquarters/branch invariant for ch. parent is the church referenced by
// ch.ParentChurch, or nil when there is none.
func ValidateHierarchy(ch *models.Church, parent *models.Church) error {
	switch ch.Type {
	case models.ChurchHeadquarters, models.ChurchIndependent:
		if ch.ParentChurch != nil {
			return ErrUnexpectedParent
		}
		return nil
	case models.ChurchBranch:
		if ch.ParentChurch == nil || parent == nil {
			return ErrBranchNeedsParent
		}
		if *ch.ParentChurch == ch.ID {
			return ErrSelfParent
		}
		if !parent.IsHeadquarters() {
			return ErrParentNotHQ
		}
		return nil
	}
	return ErrInvalidType
}
