package services

import "escrow-market/internal/models"

type transitionKey struct {
	from   models.DealStatus
	action models.DealAction
	role   models.PartyRole
}

var dealTransitions = map[transitionKey]models.DealStatus{
	{models.DealStatusPendingAcceptance, models.DealActionAccept, models.RoleSeller}: models.DealStatusPendingPayment,
	{models.DealStatusPendingAcceptance, models.DealActionReject, models.RoleSeller}: models.DealStatusRejected,
	{models.DealStatusPendingAcceptance, models.DealActionCancel, models.RoleBuyer}:  models.DealStatusCancelled,
	{models.DealStatusPendingAcceptance, models.DealActionExpire, models.RoleSystem}: models.DealStatusCancelled,
	{models.DealStatusPendingPayment, models.DealActionPay, models.RoleBuyer}:        models.DealStatusInProgress,
	{models.DealStatusInProgress, models.DealActionComplete, models.RoleBuyer}:       models.DealStatusCompleted,
	{models.DealStatusInProgress, models.DealActionDispute, models.RoleBuyer}:        models.DealStatusDisputed,
	{models.DealStatusInProgress, models.DealActionDispute, models.RoleSeller}:       models.DealStatusDisputed,
	{models.DealStatusDisputed, models.DealActionRelease, models.RoleSupport}:        models.DealStatusResolved,
	{models.DealStatusDisputed, models.DealActionRefund, models.RoleSupport}:         models.DealStatusRefunded,
}

// actionOrder fixes the order AllowedActions reports actions in.
var actionOrder = []models.DealAction{
	models.DealActionAccept,
	models.DealActionReject,
	models.DealActionCancel,
	models.DealActionExpire,
	models.DealActionPay,
	models.DealActionComplete,
	models.DealActionDispute,
	models.DealActionRelease,
	models.DealActionRefund,
}

// NextDealStatus returns the status a deal moves to when role performs action
// on a deal in status current. Illegal combinations return a *TransitionError.
func NextDealStatus(current models.DealStatus, action models.DealAction, role models.PartyRole) (models.DealStatus, error) {
	next, ok := dealTransitions[transitionKey{current, action, role}]
	if !ok {
		return "", &TransitionError{From: current, Action: action, Role: role}
	}
	return next, nil
}

// AllowedActions lists what role may do to a deal in status s
func AllowedActions(s models.DealStatus, role models.PartyRole) []models.DealAction {
	out := []models.DealAction{}
	for _, a := range actionOrder {
		if _, ok := dealTransitions[transitionKey{s, a, role}]; ok {
			out = append(out, a)
		}
	}
	return out
}

// IsTerminal reports whether no actor can move a deal out of s
func IsTerminal(s models.DealStatus) bool {
	for k := range dealTransitions {
		if k.from == s {
			return false
		}
	}
	return true
}
