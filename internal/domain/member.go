package domain

// Member is the participation meta of a live connection.
// No transport or lifecycle logic here.
type Member struct {
	Owner OwnerID
}

func NewMember(owner OwnerID) *Member {
	return &Member{Owner: owner}
}
