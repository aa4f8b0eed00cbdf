package models

// Field names a profile attribute. The same keys are used by conversation drafts.
type Field string

// Profile fields.
const (
	FieldName      Field = "name"
	FieldGender    Field = "gender"
	FieldAge       Field = "age"
	FieldEducation Field = "education"
	FieldAbout     Field = "about"
	FieldApproach  Field = "approach"
	FieldFocus     Field = "focus"
	FieldPrice     Field = "price"
	FieldPhoto     Field = "photo"
	FieldRequest   Field = "request"
)

// ProviderFields lists a provider profile's fields in intake order.
var ProviderFields = []Field{
	FieldName, FieldGender, FieldAge, FieldEducation, FieldAbout,
	FieldApproach, FieldFocus, FieldPrice, FieldPhoto,
}

// SeekerFields lists a seeker profile's fields in intake order.
var SeekerFields = []Field{FieldName, FieldGender, FieldAge, FieldRequest}

// FieldsFor returns the editable fields of a role's profile.
func FieldsFor(role Role) []Field {
	if role == RoleProvider {
		return ProviderFields
	}
	return SeekerFields
}

// ProviderProfile is a psychologist's profile. Saved wholesale on every write.
type ProviderProfile struct {
	UserID    int64   `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Name      string  `gorm:"type:text;not null" json:"name"`
	Gender    string  `gorm:"type:text;not null" json:"gender"`
	Age       string  `gorm:"type:text;not null" json:"age"`
	Education string  `gorm:"type:text;not null" json:"education"`
	About     string  `gorm:"type:text;not null" json:"about"`
	Approach  string  `gorm:"type:text;not null" json:"approach"`
	Focus     string  `gorm:"type:text;not null" json:"focus"`
	Price     string  `gorm:"type:text;not null" json:"price"`
	PhotoRef  *string `gorm:"type:text" json:"photo_ref,omitempty"`

	User  *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Owner Owner `gorm:"-" json:"owner"`
}

// TableName specifies the database table name for ProviderProfile.
func (ProviderProfile) TableName() string {
	return "provider_profiles"
}

// Draft returns the profile as a field map, the shape conversation drafts use.
func (p *ProviderProfile) Draft() map[Field]string {
	d := map[Field]string{
		FieldName:      p.Name,
		FieldGender:    p.Gender,
		FieldAge:       p.Age,
		FieldEducation: p.Education,
		FieldAbout:     p.About,
		FieldApproach:  p.Approach,
		FieldFocus:     p.Focus,
		FieldPrice:     p.Price,
	}
	if p.PhotoRef != nil {
		d[FieldPhoto] = *p.PhotoRef
	}
	return d
}

// ProviderFromDraft builds a full provider profile from a draft. A missing or
// empty photo entry leaves PhotoRef nil.
func ProviderFromDraft(userID int64, d map[Field]string) *ProviderProfile {
	return &ProviderProfile{
		UserID:    userID,
		Name:      d[FieldName],
		Gender:    d[FieldGender],
		Age:       d[FieldAge],
		Education: d[FieldEducation],
		About:     d[FieldAbout],
		Approach:  d[FieldApproach],
		Focus:     d[FieldFocus],
		Price:     d[FieldPrice],
		PhotoRef:  StringPtr(d[FieldPhoto]),
	}
}

// SeekerProfile is a client's profile. Saved wholesale on every write.
type SeekerProfile struct {
	UserID  int64  `gorm:"primaryKey;autoIncrement:false" json:"user_id"`
	Name    string `gorm:"type:text;not null" json:"name"`
	Gender  string `gorm:"type:text;not null" json:"gender"`
	Age     string `gorm:"type:text;not null" json:"age"`
	Request string `gorm:"type:text;not null" json:"request"`

	User  *User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Owner Owner `gorm:"-" json:"owner"`
}

// TableName specifies the database table name for SeekerProfile.
func (SeekerProfile) TableName() string {
	return "seeker_profiles"
}

// Draft returns the profile as a field map.
func (p *SeekerProfile) Draft() map[Field]string {
	return map[Field]string{
		FieldName:    p.Name,
		FieldGender:  p.Gender,
		FieldAge:     p.Age,
		FieldRequest: p.Request,
	}
}

// SeekerFromDraft builds a full seeker profile from a draft.
func SeekerFromDraft(userID int64, d map[Field]string) *SeekerProfile {
	return &SeekerProfile{
		UserID:  userID,
		Name:    d[FieldName],
		Gender:  d[FieldGender],
		Age:     d[FieldAge],
		Request: d[FieldRequest],
	}
}

// Candidate is one profile surfaced by the deck. Exactly one of Provider and Seeker is set.
type Candidate struct {
	UserID   int64            `json:"user_id"`
	Role     Role             `json:"role"`
	Provider *ProviderProfile `json:"provider,omitempty"`
	Seeker   *SeekerProfile   `json:"seeker,omitempty"`
}

// Name returns the profile name of the candidate.
func (c *Candidate) Name() string {
	if c.Provider != nil {
		return c.Provider.Name
	}
	if c.Seeker != nil {
		return c.Seeker.Name
	}
	return ""
}
