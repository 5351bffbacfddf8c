package crawler

import (
	"strings"

	"github.com/JakeFAU/leadcrawler/internal/heuristics"
)

// Outreach holds the sender details used in draft messages.
type Outreach struct {
	SenderName  string
	Website     string
	ReviewHours string
}

// DraftWriter renders role-tailored outreach drafts.
type DraftWriter struct {
	outreach Outreach
}

// NewDraftWriter builds a DraftWriter.
func NewDraftWriter(outreach Outreach) *DraftWriter {
	return &DraftWriter{outreach: outreach}
}

// Draft returns the outreach message for role. Supervisors and publishers get
// a deliverables pitch; everyone else gets the release pitch.
func (d *DraftWriter) Draft(role heuristics.Role) string {
	var b strings.Builder
	switch role {
	case heuristics.RoleMusicSupervisor, heuristics.RolePublisher:
		b.WriteString("Hi there\n\n")
		b.WriteString("I came across your work and wanted to reach out from " + d.outreach.SenderName + ".\n\n")
		b.WriteString("If you ever need clean, reliable mixing and mastering support or alternate mixes for deliverables, ")
		b.WriteString("we can turn things around quickly.\n\n")
		b.WriteString("If helpful, reply with a reference and any delivery needs and I can follow up.\n\n")
		d.signature(&b)
	default:
		b.WriteString("Hi\n\n")
		b.WriteString("If you are releasing music soon and want it to sound finished on Spotify and Apple, ")
		b.WriteString("we can help with mixing and mastering.\n\n")
		b.WriteString("Send a link to your latest track and what you want to improve.\n\n")
		d.signature(&b)
		if d.outreach.ReviewHours != "" {
			b.WriteString("\n" + d.outreach.ReviewHours + "\n")
		}
	}
	return b.String()
}

func (d *DraftWriter) signature(b *strings.Builder) {
	b.WriteString("Best\n")
	b.WriteString(d.outreach.SenderName + "\n")
	if d.outreach.Website != "" {
		b.WriteString(d.outreach.Website + "\n")
	}
}
