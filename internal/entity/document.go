package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Stage is the position of a document in the processing pipeline.
type Stage string

const (
	StageUploaded    Stage = "UPLOADED"
	StageClassified  Stage = "CLASSIFIED"
	StageExtracted   Stage = "EXTRACTED"
	StageTransformed Stage = "TRANSFORMED"
	StagePersisted   Stage = "PERSISTED"
	StageNotified    Stage = "NOTIFIED"
)

// BillTypeUnknown marks an indeterminate classification. Downstream stages
// still receive it; extraction refuses it as an unsupported type.
const BillTypeUnknown = "Unknown"

// Fields is a JSON object produced by an extraction or transformation stage.
type Fields map[string]any

// Document is the unit of work and the persisted record. Upload-derived
// fields are immutable after construction; pipeline fields are only settable
// through the stage-gated mutators below, so "extraction not yet run" is a
// stage, not a nil check scattered across callers.
type Document struct {
	ID          uuid.UUID
	Filename    string
	ContentType string
	ObjectKey   string
	CreatedAt   time.Time

	BillType    string
	BillSubtype string

	ExtractedData Fields
	NetsuiteData  Fields

	stage Stage
}

// NewDocument creates a document in the Uploaded stage. The intake controller
// owns id and createdAt; they never change afterwards.
func NewDocument(id uuid.UUID, filename, contentType, objectKey string, createdAt time.Time) *Document {
	return &Document{
		ID:          id,
		Filename:    filename,
		ContentType: contentType,
		ObjectKey:   objectKey,
		CreatedAt:   createdAt,
		stage:       StageUploaded,
	}
}

// Rehydrate rebuilds a document loaded from the record store. The stage is
// derived from which field groups are populated.
func Rehydrate(id uuid.UUID, filename, contentType, objectKey string, createdAt time.Time,
	billType, billSubtype string, extracted, netsuite Fields) *Document {
	d := &Document{
		ID:            id,
		Filename:      filename,
		ContentType:   contentType,
		ObjectKey:     objectKey,
		CreatedAt:     createdAt,
		BillType:      billType,
		BillSubtype:   billSubtype,
		ExtractedData: extracted,
		NetsuiteData:  netsuite,
	}
	switch {
	case len(extracted) > 0 && len(netsuite) > 0:
		d.stage = StagePersisted
	case billType != "":
		d.stage = StageClassified
	default:
		d.stage = StageUploaded
	}
	return d
}

// Stage reports the document's current pipeline stage.
func (d *Document) Stage() Stage { return d.stage }

// Clone returns an independent working copy. Field maps are shallow-copied;
// stages only ever replace them wholesale.
func (d *Document) Clone() *Document {
	c := *d
	if d.ExtractedData != nil {
		c.ExtractedData = make(Fields, len(d.ExtractedData))
		for k, v := range d.ExtractedData {
			c.ExtractedData[k] = v
		}
	}
	if d.NetsuiteData != nil {
		c.NetsuiteData = make(Fields, len(d.NetsuiteData))
		for k, v := range d.NetsuiteData {
			c.NetsuiteData[k] = v
		}
	}
	return &c
}

// SetClassification records the classification labels. Valid only once,
// directly after upload.
func (d *Document) SetClassification(billType, billSubtype string) error {
	if d.stage != StageUploaded {
		return fmt.Errorf("classify: document %s is %s, want %s", d.ID, d.stage, StageUploaded)
	}
	if billType == "" {
		billType = BillTypeUnknown
	}
	if billSubtype == "" {
		billSubtype = BillTypeUnknown
	}
	d.BillType = billType
	d.BillSubtype = billSubtype
	d.stage = StageClassified
	return nil
}

// ResetForReprocess drops previous extraction output so a persisted record
// can re-enter the pipeline at the extraction stage, keeping its
// classification. Upload fields and created_at are untouched.
func (d *Document) ResetForReprocess() error {
	if d.BillType == "" {
		return fmt.Errorf("reprocess: document %s has no classification", d.ID)
	}
	d.ExtractedData = nil
	d.NetsuiteData = nil
	d.stage = StageClassified
	return nil
}

// SetExtraction records the structured extraction output.
func (d *Document) SetExtraction(fields Fields) error {
	if d.stage != StageClassified {
		return fmt.Errorf("extract: document %s is %s, want %s", d.ID, d.stage, StageClassified)
	}
	if len(fields) == 0 {
		return fmt.Errorf("extract: document %s: empty field set", d.ID)
	}
	d.ExtractedData = fields
	d.stage = StageExtracted
	return nil
}

// SetTransformation records the downstream payload. It refuses to run on a
// document without extraction output: extracted_data and netsuite_data are
// either both present or both absent in any completed run.
func (d *Document) SetTransformation(fields Fields) error {
	if d.stage != StageExtracted {
		return fmt.Errorf("transform: document %s is %s, want %s", d.ID, d.stage, StageExtracted)
	}
	if len(d.ExtractedData) == 0 {
		return fmt.Errorf("transform: document %s has no extracted data", d.ID)
	}
	if len(fields) == 0 {
		return fmt.Errorf("transform: document %s: empty payload", d.ID)
	}
	d.NetsuiteData = fields
	d.stage = StageTransformed
	return nil
}

// MarkPersisted advances the document after the record store accepted the
// fully transformed run. The initial Classified-state insert does not move
// the stage; only the final write does.
func (d *Document) MarkPersisted() error {
	if d.stage != StageTransformed {
		return fmt.Errorf("persist: document %s is %s, want %s", d.ID, d.stage, StageTransformed)
	}
	d.stage = StagePersisted
	return nil
}

// MarkNotified is best-effort bookkeeping; a run is complete once persisted,
// so dropping the notification never changes the outcome.
func (d *Document) MarkNotified() {
	if d.stage == StagePersisted {
		d.stage = StageNotified
	}
}
