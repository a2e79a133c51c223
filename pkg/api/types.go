package api

// User is a registered account. Email is the identity used in groups.
type User struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	CreatedAt   int64  `json:"created_at"`
}

type RegisterRequest struct {
	Email       string `json:"email"`
	DisplayName string `json:"display_name"`
	Password    string `json:"password"`
}

type RegisterResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token"`
}

type GetCurrentUserRequest struct{}

type GetCurrentUserResponse struct {
	User *User `json:"user"`
}

// Group is a set of people sharing expenses.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"`
	CreatedBy string   `json:"created_by"`
}

type CreateGroupRequest struct {
	Name    string   `json:"name"`
	Members []string `json:"members"`
}

type CreateGroupResponse struct {
	Group *Group `json:"group"`
}

type GetGroupRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupResponse struct {
	Group *Group `json:"group"`
}

type ListGroupsRequest struct{}

type ListGroupsResponse struct {
	Groups []*Group `json:"groups"`
}

type AddMembersRequest struct {
	GroupID string   `json:"group_id"`
	Members []string `json:"members"`
}

type AddMembersResponse struct {
	Group *Group `json:"group"`
}

type DeleteGroupRequest struct {
	GroupID string `json:"group_id"`
}

type DeleteGroupResponse struct{}

// MemberBalance is one member's position in a group. Net is positive when
// the member is owed money.
type MemberBalance struct {
	Member string  `json:"member"`
	Paid   float64 `json:"paid"`
	Owed   float64 `json:"owed"`
	Net    float64 `json:"net"`
}

type GetGroupBalancesRequest struct {
	GroupID string `json:"group_id"`
}

type GetGroupBalancesResponse struct {
	Balances    []*MemberBalance `json:"balances"`
	Settlements []*Settlement    `json:"settlements"`
}

// Expense is one shared cost split equally among Participants.
type Expense struct {
	ID           string   `json:"id"`
	GroupID      string   `json:"group_id"`
	Payer        string   `json:"payer"`
	Amount       float64  `json:"amount"`
	Participants []string `json:"participants"`
	Description  string   `json:"description"`
	CreatedAt    int64    `json:"created_at"`
}

// Settlement is one payment From a debtor To a creditor.
type Settlement struct {
	ID        string  `json:"id"`
	From      string  `json:"from"`
	To        string  `json:"to"`
	Amount    float64 `json:"amount"`
	IsSettled bool    `json:"is_settled"`
	SettledAt int64   `json:"settled_at"`
}

type AddExpenseRequest struct {
	GroupID      string   `json:"group_id"`
	Payer        string   `json:"payer"`
	Amount       float64  `json:"amount"`
	Participants []string `json:"participants"`
	Description  string   `json:"description"`
}

type AddExpenseResponse struct {
	Expense     *Expense      `json:"expense"`
	Settlements []*Settlement `json:"settlements"`
}

type UpdateExpenseRequest struct {
	ExpenseID    string   `json:"expense_id"`
	Payer        string   `json:"payer"`
	Amount       float64  `json:"amount"`
	Participants []string `json:"participants"`
	Description  string   `json:"description"`
}

type UpdateExpenseResponse struct {
	Expense     *Expense      `json:"expense"`
	Settlements []*Settlement `json:"settlements"`
}

type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id"`
}

type DeleteExpenseResponse struct {
	Settlements []*Settlement `json:"settlements"`
}

type ListExpensesRequest struct {
	GroupID string `json:"group_id"`
}

type ListExpensesResponse struct {
	Expenses []*Expense `json:"expenses"`
}

type ListSettlementsRequest struct {
	GroupID string `json:"group_id"`
}

type ListSettlementsResponse struct {
	Settlements []*Settlement `json:"settlements"`
}

type MarkSettlementPaidRequest struct {
	SettlementID string `json:"settlement_id"`
	Paid         bool   `json:"paid"`
}

type MarkSettlementPaidResponse struct {
	Settlement *Settlement `json:"settlement"`
}
