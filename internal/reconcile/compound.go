package reconcile

import (
	"context"
	"strings"

	"github.com/tbourn/go-chat-sync/internal/domain"
)

// CompoundSpec describes a dependent entity linked by foreign key to an
// attachment entity written in the same unit.
type CompoundSpec struct {
	// Kind is the dependent kind.
	Kind domain.Kind
	// AttachmentKind is the kind written from the parent fields.
	AttachmentKind domain.Kind
	// ForeignKey is the dependent's column referencing the attachment.
	ForeignKey string
	// Embed attaches the written attachment to the returned dependent.
	Embed func(dependent, attachment domain.Entity)
}

// SponsorshipWithSponsor links a sponsorship record to its sponsor.
func SponsorshipWithSponsor() CompoundSpec {
	return CompoundSpec{
		Kind:           domain.KindSponsorshipHistory,
		AttachmentKind: domain.KindSponsor,
		ForeignKey:     "sponsor_id",
		Embed: func(dep, att domain.Entity) {
			h, ok := dep.(*domain.SponsorshipHistory)
			if !ok {
				return
			}
			if s, ok := att.(*domain.Sponsor); ok {
				h.Sponsor = s
			}
		},
	}
}

// CreateWithDependent writes the attachment from parentFields, then creates
// the dependent from template with the attachment's id under
// spec.ForeignKey. The attachment is updated when parentFields carries an
// id and created otherwise. A failure at either step leaves neither written.
func (r *Reconciler) CreateWithDependent(ctx context.Context, spec CompoundSpec, parentFields, template domain.Fields) (domain.Entity, error) {
	var out domain.Entity
	err := r.run(ctx, "compound_create", spec.Kind, "", func(ctx context.Context, u domain.Unit) error {
		att, err := r.attach(ctx, u, spec, parentFields)
		if err != nil {
			return err
		}
		fields := template.Clone()
		fields[spec.ForeignKey] = att.PrimaryKey()

		dep, err := r.Writer.Create(ctx, u, spec.Kind, fields)
		if err != nil {
			return err
		}
		spec.Embed(dep, att)
		out = dep
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// UpdateWithDependent is CreateWithDependent for an existing dependent: the
// dependent is re-read inside the unit and updated with changes plus the
// attachment's id. A dependent that no longer exists yields a
// *domain.NotFoundError.
func (r *Reconciler) UpdateWithDependent(ctx context.Context, spec CompoundSpec, parentFields domain.Fields, dependent domain.Entity, changes domain.Fields) (domain.Entity, error) {
	id := dependent.PrimaryKey()
	var out domain.Entity
	err := r.run(ctx, "compound_update", spec.Kind, lockKey(spec.Kind, id), func(ctx context.Context, u domain.Unit) error {
		current, err := u.Get(ctx, spec.Kind, id)
		if err != nil {
			return err
		}
		att, err := r.attach(ctx, u, spec, parentFields)
		if err != nil {
			return err
		}
		fields := changes.Clone()
		fields[spec.ForeignKey] = att.PrimaryKey()

		dep, err := r.Writer.Update(ctx, u, current, fields)
		if err != nil {
			return err
		}
		spec.Embed(dep, att)
		out = dep
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Reconciler) attach(ctx context.Context, u domain.Unit, spec CompoundSpec, parentFields domain.Fields) (domain.Entity, error) {
	if id, ok := parentFields["id"]; ok && !blankID(id) {
		existing, err := u.Get(ctx, spec.AttachmentKind, id)
		if err != nil {
			return nil, err
		}
		return r.Writer.Update(ctx, u, existing, parentFields)
	}
	return r.Writer.Create(ctx, u, spec.AttachmentKind, parentFields)
}

func blankID(v any) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}
