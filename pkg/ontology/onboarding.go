package ontology

// Onboarding property names used by the BDI agent layer.
const (
	PropHasOnboardingStep = "hasOnboardingStep"
	PropHasPreference     = "hasPreference"
	PropHasGoal           = "hasGoal"
	PropProvidedFeedback  = "providedFeedback"
	PropHasDescription    = "hasDescription"
	PropBelongsTo         = "belongsTo"
	PropUserID            = "userID"
)

// Onboarding returns the user onboarding ontology: users progress through
// onboarding steps while their preferences, goals, feedback and business
// descriptions are captured.
func Onboarding() *Static {
	s := NewStatic()
	s.AddClass("User", "A person being onboarded")
	s.AddClass("OnboardingStep", "A single step of the onboarding flow")
	s.AddClass("UserPreference", "A stated preference of a user")
	s.AddClass("UserGoal", "A goal the user wants to achieve")
	s.AddClass("UserFeedback", "Feedback provided by a user")
	s.AddClass("BusinessModel", "The business model of the user's company")
	s.AddClass("BusinessDescription", "A description of a business model")
	s.AddClass("ProductDescription", "A description of a product")

	s.AddProperty(PropHasOnboardingStep, "User", "OnboardingStep", "Links a user to an onboarding step")
	s.AddProperty(PropHasPreference, "User", "UserPreference", "Links a user to a preference")
	s.AddProperty(PropHasGoal, "User", "UserGoal", "Links a user to a goal")
	s.AddProperty(PropProvidedFeedback, "User", "UserFeedback", "Links a user to feedback they gave")
	s.AddProperty(PropHasDescription, "BusinessModel", "BusinessDescription", "Describes a business model")
	s.AddProperty(PropBelongsTo, "ProductDescription", "BusinessModel", "Places a product in a business model")
	s.AddProperty(PropUserID, "User", "xsd:string", "The user's identifier")
	return s
}
