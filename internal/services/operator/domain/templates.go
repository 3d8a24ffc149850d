package domain

// Chess workflow templates.
const (
	TemplateGameAccept      = "Chess:GameAccept"
	TemplateGame            = "Chess:Game"
	TemplateOperatorRole    = "Chess:OperatorRole"
	TemplateActiveAction    = "Chess:ActiveAction"
	TemplateDrawClaim       = "Chess:DrawClaim"
	TemplateEndGameProposal = "Chess:EndGameProposal"
	TemplateAcceptedDraw    = "Chess:AcceptedDraw"
	TemplateRejectedDraw    = "Chess:RejectedDraw"
	TemplateSurrender       = "Chess:Surrender"
)

// Alias registry templates.
const (
	TemplateAliases      = "Alias:Aliases"
	TemplateAliasRequest = "Alias:AliasRequest"
)

// Session protocol templates.
const (
	TemplateSessionOperator = "Session:OperatorRole"
	TemplateSessionRequest  = "Session:SessionRequest"
	TemplateRenameRequest   = "Session:RenameRequest"
)

// Payload fields shared by role contracts.
const (
	FieldOperator    = "operator"
	FieldPublicParty = "publicParty"
	FieldGameID      = "gameId"
)
