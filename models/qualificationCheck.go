package models

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"bitbucket.org/mmdatafocus/telco_backend/annotation"
	"bitbucket.org/mmdatafocus/telco_backend/config"
	"bitbucket.org/mmdatafocus/telco_backend/identity"
	"bitbucket.org/mmdatafocus/telco_backend/utils"
)

const (
	QualificationStateAcknowledged = "acknowledged"
	QualificationStateInProgress   = "inProgress"
	QualificationStateDone         = "done"
	QualificationStateTerminated   = "terminatedWithError"
)

type QualificationCheck struct {
	ID                  string                      `gorm:"primary_key;size:64" json:"id"`
	Description         string                      `gorm:"type:text" json:"description"`
	State               string                      `gorm:"size:32;index" json:"state"`
	QualificationResult string                      `gorm:"size:32" json:"qualificationResult"`
	Notes               []annotation.Note           `gorm:"type:text;serializer:json" json:"note"`
	Characteristics     []annotation.Characteristic `gorm:"type:text;serializer:json" json:"characteristic"`
	RelatedParty        []RelatedParty              `gorm:"type:text;serializer:json" json:"relatedParty"`
	// Facts is decoded from notes and characteristics on every write.
	Facts     *annotation.Facts `gorm:"type:text;serializer:json" json:"facts,omitempty"`
	CreatedAt time.Time         `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time         `gorm:"autoUpdateTime" json:"updatedAt"`
}

type NewQualificationCheck struct {
	Id                  string                      `json:"id" validate:"omitempty,max=64"`
	Description         string                      `json:"description"`
	State               string                      `json:"state" validate:"omitempty,oneof=acknowledged inProgress done terminatedWithError"`
	QualificationResult string                      `json:"qualificationResult" validate:"omitempty,max=32"`
	Notes               []annotation.Note           `json:"note"`
	Characteristics     []annotation.Characteristic `json:"characteristic"`
	RelatedParty        []RelatedParty              `json:"relatedParty" validate:"dive"`
}

func (input *NewQualificationCheck) extensionFacts() *annotation.Facts {
	parser := annotation.NewParser(config.GetLogger())
	return annotation.Encode(parser.Parse(annotation.Input{
		Notes:           input.Notes,
		Characteristics: input.Characteristics,
	}))
}

func CreateQualificationCheck(ctx context.Context, input *NewQualificationCheck) (*QualificationCheck, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}
	id := strings.TrimSpace(input.Id)
	if id == "" {
		id = uuid.NewString()
	}
	state := input.State
	if state == "" {
		state = QualificationStateAcknowledged
	}

	q := QualificationCheck{
		ID:                  id,
		Description:         input.Description,
		State:               state,
		QualificationResult: input.QualificationResult,
		Notes:               input.Notes,
		Characteristics:     input.Characteristics,
		RelatedParty:        input.RelatedParty,
		Facts:               input.extensionFacts(),
	}
	db := config.GetDB()
	if err := db.WithContext(ctx).Create(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func UpdateQualificationCheck(ctx context.Context, id string, input *NewQualificationCheck) (*QualificationCheck, error) {
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	db := config.GetDB()
	var q QualificationCheck
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}

	q.Description = input.Description
	if input.State != "" {
		q.State = input.State
	}
	q.QualificationResult = input.QualificationResult
	q.Notes = input.Notes
	q.Characteristics = input.Characteristics
	q.RelatedParty = input.RelatedParty
	q.Facts = input.extensionFacts()
	if err := db.WithContext(ctx).Save(&q).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func GetQualificationCheck(ctx context.Context, id string) (*QualificationCheck, error) {
	db := config.GetDB()
	var q QualificationCheck
	if err := db.WithContext(ctx).Where("id = ?", id).Take(&q).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, utils.ErrorRecordNotFound
		}
		return nil, err
	}
	return &q, nil
}

// ListQualificationChecks returns the most recently updated checks first.
func ListQualificationChecks(ctx context.Context, limit int) ([]QualificationCheck, error) {
	db := config.GetDB()
	var results []QualificationCheck
	err := db.WithContext(ctx).Order("updated_at DESC").Order("id").Limit(limit).Find(&results).Error
	return results, err
}

func (q QualificationCheck) AnnotationInput() annotation.Input {
	return annotation.Input{
		Extension:       q.Facts,
		Notes:           q.Notes,
		Characteristics: q.Characteristics,
	}
}

func (q QualificationCheck) IdentityDocument() identity.Document {
	return identity.Document{
		RelatedPartyEmail: firstPartyEmail(q.RelatedParty),
		Description:       q.Description,
		NoteTexts:         noteTexts(q.Notes),
	}
}

func noteTexts(notes []annotation.Note) []string {
	texts := make([]string, 0, len(notes))
	for _, n := range notes {
		texts = append(texts, n.Text)
	}
	return texts
}
