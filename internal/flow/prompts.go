package flow

import "github.com/CompactDigital/AtendeBot/internal/models"

// Bot prompts. The widget-facing language of the product is Brazilian
// Portuguese; the flows compare user confirmations against the literals
// "sim" and "pular" after lowercasing.

const (
	answerYes  = "sim"
	answerSkip = "pular"
)

// Registration flow prompts.
const (
	MsgRegistrationStart = "Que ótimo! Vamos criar sua conta. Por favor, me diga seu nome completo."

	msgAskEmail         = "Qual é o seu melhor email?"
	msgAskPhone         = "Opcional: Qual o seu telefone com DDD? (Se não quiser informar, digite 'pular')"
	msgAskPassword      = "Agora, crie uma senha com pelo menos 6 caracteres."
	msgPhoneSkipped     = "Entendido. Agora, crie uma senha com pelo menos 6 caracteres."
	msgRetryUsername    = "Ok, sem problemas. Por favor, me diga o nome correto."
	msgRetryEmail       = "Entendi. Por favor, informe o email correto."
	msgRetryPhone       = "Certo. Qual o telefone correto? (Ou digite 'pular')"
	msgEmailInvalid     = "Este email não parece válido. Por favor, tente outro."
	msgEmailTaken       = "Este email já está cadastrado. Por favor, use outro ou faça o login."
	msgPasswordTooShort = "Sua senha é muito curta. Ela precisa ter pelo menos 6 caracteres. Por favor, tente outra."

	confirmUsernameFmt  = "Seu nome é \"%s\", correto? (sim/não)"
	confirmEmailFmt     = "O email será \"%s\", correto? (sim/não)"
	confirmPhoneFmt     = "Seu telefone é \"%s\", correto? (sim/não)"
	registrationDoneFmt = "Perfeito, %s! Seu cadastro foi realizado com sucesso. Você já pode fazer o login para ter acesso a todas as funcionalidades."
)

// Ticket flow prompts, one per collecting state.
var ticketQuestions = map[models.TicketState]string{
	models.TicketStateAwaitingIdea:            "Ótimo! Para começarmos seu orçamento/chamado, por favor, descreva a sua ideia com o máximo de detalhes possível.",
	models.TicketStateAwaitingFunctionalities: "Perfeito! Agora, quais funcionalidades você imagina para o seu projeto? (ex: login, catálogo, pagamentos, etc.)",
	models.TicketStateAwaitingDeadline:        "Certo. Qual o prazo ideal para conclusão do projeto? (ex: 3 meses, fim do ano, etc.)",
	models.TicketStateAwaitingBudget:          "Por último, você tem um orçamento estimado para este projeto? (ex: R$ 5.000, R$ 10.000 - apenas uma estimativa)",
}

// ticketFields maps each collecting state to the ticket column it fills.
var ticketFields = map[models.TicketState]models.TicketField{
	models.TicketStateAwaitingFunctionalities: models.TicketFieldFunctionalities,
	models.TicketStateAwaitingDeadline:        models.TicketFieldDeadline,
	models.TicketStateAwaitingBudget:          models.TicketFieldBudget,
}

const (
	MsgLoginRequired = "Para criar um chamado ou orçamento, por favor, faça o login ou cadastre-se em nosso site."

	msgTicketComplete    = "Seu chamado foi registrado com sucesso! Nossa equipe entrará em contato em breve."
	msgTicketStateError  = "Desculpe, ocorreu um erro. Por favor, tente iniciar um chamado novamente."
	msgConversationReset = "Desculpe, algo deu errado. Por favor, comece novamente."
)
