package conversation

import "psymatch/internal/models"

// State labels a conversation step. The zero value is not a valid state.
type State string

// Intake states.
const (
	StateEnded        State = "ended"
	StateAwaitingRole State = "awaiting_role"

	StateProviderName      State = "provider_name"
	StateProviderGender    State = "provider_gender"
	StateProviderAge       State = "provider_age"
	StateProviderEducation State = "provider_education"
	StateProviderAbout     State = "provider_about"
	StateProviderApproach  State = "provider_approach"
	StateProviderFocus     State = "provider_focus"
	StateProviderPrice     State = "provider_price"
	StateProviderPhoto     State = "provider_photo"

	StateSeekerName    State = "seeker_name"
	StateSeekerGender  State = "seeker_gender"
	StateSeekerAge     State = "seeker_age"
	StateSeekerRequest State = "seeker_request"
)

// Edit states.
const (
	StateEditMenu      State = "edit_menu"
	StateEditName      State = "edit_name"
	StateEditGender    State = "edit_gender"
	StateEditAge       State = "edit_age"
	StateEditEducation State = "edit_education"
	StateEditAbout     State = "edit_about"
	StateEditApproach  State = "edit_approach"
	StateEditFocus     State = "edit_focus"
	StateEditPrice     State = "edit_price"
	StateEditPhoto     State = "edit_photo"
	StateEditRequest   State = "edit_request"
)

// Flow names the two conversations sharing the state machine.
type Flow string

const (
	FlowIntake Flow = "intake"
	FlowEdit   Flow = "edit"
)

// InputKind is the shape of one inbound reply.
type InputKind int

const (
	InputText InputKind = iota + 1
	InputPhoto
	InputSkip
)

func (k InputKind) String() string {
	switch k {
	case InputText:
		return "text"
	case InputPhoto:
		return "photo"
	case InputSkip:
		return "skip"
	default:
		return "unknown"
	}
}

type accepts uint8

const (
	acceptText accepts = 1 << iota
	acceptPhoto
	acceptSkip
)

func (a accepts) allows(k InputKind) bool {
	switch k {
	case InputText:
		return a&acceptText != 0
	case InputPhoto:
		return a&acceptPhoto != 0
	case InputSkip:
		return a&acceptSkip != 0
	}
	return false
}

// transition is one capture step: the input shapes it takes, the draft field
// it writes and the state it moves to. Next == StateEnded commits the intake
// draft; Next == StateEditMenu commits the edit draft.
type transition struct {
	Field   models.Field
	Accepts accepts
	Next    State
}

// Field-capture transitions. StateAwaitingRole and StateEditMenu are selector
// states and are handled separately.
var transitions = map[State]transition{
	StateProviderName:      {models.FieldName, acceptText, StateProviderGender},
	StateProviderGender:    {models.FieldGender, acceptText, StateProviderAge},
	StateProviderAge:       {models.FieldAge, acceptText, StateProviderEducation},
	StateProviderEducation: {models.FieldEducation, acceptText, StateProviderAbout},
	StateProviderAbout:     {models.FieldAbout, acceptText, StateProviderApproach},
	StateProviderApproach:  {models.FieldApproach, acceptText, StateProviderFocus},
	StateProviderFocus:     {models.FieldFocus, acceptText, StateProviderPrice},
	StateProviderPrice:     {models.FieldPrice, acceptText, StateProviderPhoto},
	StateProviderPhoto:     {models.FieldPhoto, acceptPhoto | acceptSkip, StateEnded},

	StateSeekerName:    {models.FieldName, acceptText, StateSeekerGender},
	StateSeekerGender:  {models.FieldGender, acceptText, StateSeekerAge},
	StateSeekerAge:     {models.FieldAge, acceptText, StateSeekerRequest},
	StateSeekerRequest: {models.FieldRequest, acceptText, StateEnded},

	StateEditName:      {models.FieldName, acceptText, StateEditMenu},
	StateEditGender:    {models.FieldGender, acceptText, StateEditMenu},
	StateEditAge:       {models.FieldAge, acceptText, StateEditMenu},
	StateEditEducation: {models.FieldEducation, acceptText, StateEditMenu},
	StateEditAbout:     {models.FieldAbout, acceptText, StateEditMenu},
	StateEditApproach:  {models.FieldApproach, acceptText, StateEditMenu},
	StateEditFocus:     {models.FieldFocus, acceptText, StateEditMenu},
	StateEditPrice:     {models.FieldPrice, acceptText, StateEditMenu},
	StateEditPhoto:     {models.FieldPhoto, acceptPhoto | acceptSkip, StateEditMenu},
	StateEditRequest:   {models.FieldRequest, acceptText, StateEditMenu},
}

var editStates = map[models.Field]State{
	models.FieldName:      StateEditName,
	models.FieldGender:    StateEditGender,
	models.FieldAge:       StateEditAge,
	models.FieldEducation: StateEditEducation,
	models.FieldAbout:     StateEditAbout,
	models.FieldApproach:  StateEditApproach,
	models.FieldFocus:     StateEditFocus,
	models.FieldPrice:     StateEditPrice,
	models.FieldPhoto:     StateEditPhoto,
	models.FieldRequest:   StateEditRequest,
}

// firstIntakeState is where each role's intake branch begins.
var firstIntakeState = map[models.Role]State{
	models.RoleProvider: StateProviderName,
	models.RoleSeeker:   StateSeekerName,
}

// States lists every state of the machine.
func States() []State {
	return []State{
		StateEnded, StateAwaitingRole,
		StateProviderName, StateProviderGender, StateProviderAge, StateProviderEducation,
		StateProviderAbout, StateProviderApproach, StateProviderFocus, StateProviderPrice,
		StateProviderPhoto,
		StateSeekerName, StateSeekerGender, StateSeekerAge, StateSeekerRequest,
		StateEditMenu, StateEditName, StateEditGender, StateEditAge, StateEditEducation,
		StateEditAbout, StateEditApproach, StateEditFocus, StateEditPrice, StateEditPhoto,
		StateEditRequest,
	}
}

func isSelector(s State) bool {
	return s == StateAwaitingRole || s == StateEditMenu
}
