// Package heuristics holds the keyword tables, deny-lists and scoring rules
// used to qualify crawled pages as leads. A Rules value is built once at
// process start and shared read-only by the extractor and the frontier.
package heuristics

// Role is a coarse classification of the person or business behind a page.
type Role string

// Recognized roles, in tie-break order.
const (
	RoleMusicSupervisor Role = "music_supervisor"
	RolePublisher       Role = "publisher"
	RoleProducer        Role = "producer"
	RoleSongwriter      Role = "songwriter"
	RoleArtist          Role = "artist"
	RoleUnknown         Role = "unknown"
)

// RoleKeywords binds a role to the phrases that indicate it.
type RoleKeywords struct {
	Role     Role
	Keywords []string
}

// Weights used by role and library scoring.
const (
	titleWeight       = 40
	headingWeight     = 25
	pathWeight        = 15
	bodyWeight        = 8
	bodyKeywordCap    = 3
	contactPathBonus  = 10
	editorialPenalty  = 15
	libraryBodyCeil   = 40
	defaultLinkFloor  = -10
	linkHintScore     = 10
	binaryLinkPenalty = 50
)

// Rules is the immutable set of heuristic tables. Callers must not mutate the
// slices after construction.
type Rules struct {
	BlockedEmailSubstrings []string
	PlaceholderLocalParts  []string
	BlockedEmailSuffixes   []string
	AudioExtensions        []string

	LinkHints        []string
	BinaryExtensions []string
	LinkScoreFloor   int

	ContactHints []string
	ContactPaths []string

	Roles           []RoleKeywords
	LibraryKeywords []string
	TeamPathHints   []string
	EditorialHints  []string

	emailDomains      *DomainBlocklist
	leadDomains       *DomainBlocklist
	nonLibraryDomains *DomainBlocklist

	// Compiled from the keyword tables above; roleSets is parallel to Roles.
	roleSets     []*keywordSet
	librarySet   *keywordSet
	teamPathSet  *keywordSet
	editorialSet *keywordSet
	contactSet   *keywordSet
	linkHintSet  *keywordSet
	emailJunkSet *keywordSet
}

// Lists carries the configurable domain lists used to build Rules.
type Lists struct {
	BlockedEmailDomains []string
	BlockedLeadDomains  []string
	NonLibraryDomains   []string
}

// DefaultLists returns the built-in domain deny-lists.
func DefaultLists() Lists {
	return Lists{
		BlockedEmailDomains: []string{
			"*.sentry.io",
			"*.wixpress.com",
			"*.wix.com",
			"*.cloudflare.com",
			"*.squarespace.com",
			"*.wordpress.com",
			"*.godaddy.com",
			"*.privacy-protection.com",
			"*.domainsbyproxy.com",
			"*.whoisprivacyservice.com",
			"*.whoisguard.com",
			"*.contactprivacy.com",
			"*.withheldforprivacy.com",
			"*.example.com",
			"*.example.org",
			"*.example.net",
			"*.domain.com",
			"*.email.com",
			"*.yourdomain.com",
			"*.yoursite.com",
			"*.mysite.com",
		},
		BlockedLeadDomains: []string{
			"*.edu",
			"*.facebook.com",
			"*.instagram.com",
			"*.twitter.com",
			"*.x.com",
			"*.youtube.com",
			"*.tiktok.com",
			"*.linkedin.com",
			"*.soundcloud.com",
			"*.spotify.com",
			"*.apple.com",
			"*.bandcamp.com",
			"*.wikipedia.org",
			"*.reddit.com",
			"*.google.com",
			"*.amazon.com",
			"*.pinterest.com",
		},
		NonLibraryDomains: []string{
			"*.discogs.com",
			"*.allmusic.com",
			"*.genius.com",
			"*.imdb.com",
			"*.pitchfork.com",
			"*.billboard.com",
			"*.last.fm",
			"*.musicbrainz.org",
			"*.rollingstone.com",
			"*.medium.com",
			"*.yelp.com",
			"*.indeed.com",
			"*.glassdoor.com",
		},
	}
}

// Default returns Rules built from the default tables and lists.
func Default() *Rules {
	return New(DefaultLists())
}

// New builds Rules with the default keyword tables and the supplied domain
// lists.
func New(lists Lists) *Rules {
	r := &Rules{
		BlockedEmailSubstrings: []string{
			"noreply@",
			"no-reply@",
			"donotreply@",
			"do-not-reply@",
			".ingest.",
		},
		PlaceholderLocalParts: []string{
			"user", "test", "email", "name", "username", "yourname",
			"youremail", "your.name", "someone", "john.doe", "jane.doe",
			"firstname", "lastname", "example",
		},
		BlockedEmailSuffixes: []string{
			".png", ".jpg", ".jpeg", ".gif", ".webp", ".svg", ".bmp", ".ico",
			".tif", ".tiff", ".zip", ".rar", ".gz", ".tgz", ".7z", ".tar",
			".js", ".css",
		},
		AudioExtensions: []string{".wav", ".aif", ".mp3"},
		LinkHints: []string{
			"contact", "about", "team", "staff", "directory", "people",
			"roster", "management", "agency", "bio", "speaker", "panel",
			"press", "epk", "booking", "licensing", "sync",
			"music-supervision", "submit", "submissions",
		},
		BinaryExtensions: []string{
			".pdf", ".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg",
			".zip", ".rar", ".gz", ".mp3", ".wav", ".aif", ".flac", ".m4a",
			".mov", ".mp4", ".avi", ".webm",
		},
		LinkScoreFloor: defaultLinkFloor,
		ContactHints: []string{
			"contact", "about", "team", "staff", "directory", "people",
			"roster", "management", "agency", "licensing", "sync", "submit",
			"inquiry", "booking", "press", "epk",
		},
		ContactPaths: []string{
			"/contact", "/contact-us", "/about", "/team", "/roster",
			"/artists", "/submit", "/submissions", "/licensing", "/sync",
			"/booking", "/management",
		},
		Roles: []RoleKeywords{
			{Role: RoleMusicSupervisor, Keywords: []string{"music supervisor", "music supervision", "supervisor of music"}},
			{Role: RolePublisher, Keywords: []string{"publisher", "publishing", "licensing", "sync"}},
			{Role: RoleProducer, Keywords: []string{"producer", "music producer", "beat maker", "composer"}},
			{Role: RoleSongwriter, Keywords: []string{"songwriter"}},
			{Role: RoleArtist, Keywords: []string{"artist", "rapper", "singer", "vocalist"}},
		},
		LibraryKeywords: []string{
			"production music", "music library", "library music",
			"royalty-free", "royalty free", "stock music", "sync licensing",
			"music licensing", "licensing", "catalog", "catalogue", "library",
		},
		TeamPathHints:  []string{"team", "about", "contact", "staff", "people", "roster"},
		EditorialHints: []string{"blog", "news", "press", "article", "/post", "/tag/"},

		emailDomains:      NewDomainBlocklist(lists.BlockedEmailDomains),
		leadDomains:       NewDomainBlocklist(lists.BlockedLeadDomains),
		nonLibraryDomains: NewDomainBlocklist(lists.NonLibraryDomains),
	}
	r.compile()
	return r
}

func (r *Rules) compile() {
	r.roleSets = make([]*keywordSet, len(r.Roles))
	for i, rk := range r.Roles {
		r.roleSets[i] = newKeywordSet(rk.Keywords)
	}
	r.librarySet = newKeywordSet(r.LibraryKeywords)
	r.teamPathSet = newKeywordSet(r.TeamPathHints)
	r.editorialSet = newKeywordSet(r.EditorialHints)
	r.contactSet = newKeywordSet(r.ContactHints)
	r.linkHintSet = newKeywordSet(r.LinkHints)
	junk := make([]string, 0, len(r.BlockedEmailSubstrings)+len(r.AudioExtensions))
	junk = append(junk, r.BlockedEmailSubstrings...)
	r.emailJunkSet = newKeywordSet(append(junk, r.AudioExtensions...))
}

// BlocksLeadDomain reports whether a lead on host must be rejected. When
// libraryOnly is set, known non-library aggregators are rejected as well.
func (r *Rules) BlocksLeadDomain(host string, libraryOnly bool) bool {
	if r.leadDomains.Blocks(host) {
		return true
	}
	return libraryOnly && r.nonLibraryDomains.Blocks(host)
}
