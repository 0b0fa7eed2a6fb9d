package authz

import (
	"strings"

	"github.com/odyssey-hr/gatekeeper/internal/identity"
)

// PathRule matches a normalized path either exactly or as a segment prefix.
type PathRule struct {
	Path  string
	Exact bool
}

// Prefix matches Path and everything below it.
func Prefix(p string) PathRule { return PathRule{Path: p} }

// Exact matches Path only.
func Exact(p string) PathRule { return PathRule{Path: p, Exact: true} }

// Matches reports whether path falls under the rule. Prefixes respect
// segment boundaries: /leave matches /leave/x but not /leaves.
func (r PathRule) Matches(path string) bool {
	if path == r.Path {
		return true
	}
	if r.Exact {
		return false
	}
	return hasSegmentPrefix(path, r.Path)
}

func hasSegmentPrefix(path, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return strings.HasPrefix(path, prefix) && len(path) > len(prefix) && path[len(prefix)] == '/'
}

func matchAny(rules []PathRule, path string) bool {
	for _, r := range rules {
		if r.Matches(path) {
			return true
		}
	}
	return false
}

// Rule narrows an otherwise granted path. A principal that holds any of
// Triggers (or anyone, when Triggers is empty) is denied unless it meets the
// requirement.
type Rule struct {
	Name        string
	Paths       []PathRule
	Triggers    []identity.Role
	RequireAny  []identity.Role
	RequireTier identity.Tier
}

func (r Rule) applies(p *identity.Principal, path string) bool {
	if !matchAny(r.Paths, path) {
		return false
	}
	return len(r.Triggers) == 0 || p.HasAnyRole(r.Triggers...)
}

func (r Rule) satisfied(p *identity.Principal) bool {
	if len(r.RequireAny) > 0 && !p.HasAnyRole(r.RequireAny...) {
		return false
	}
	if r.RequireTier != "" && p.Tier != r.RequireTier {
		return false
	}
	return true
}

// Landing sends principals with a narrow role mix to a more useful page.
type Landing struct {
	Name   string
	Paths  []PathRule
	Holds  identity.Role
	Lacks  []identity.Role
	Target string
}

func (l Landing) applies(p *identity.Principal, path string) bool {
	return matchAny(l.Paths, path) && p.HasRole(l.Holds) && !p.HasAnyRole(l.Lacks...)
}

// Policy is the full route policy. It is read-only once handed to an Engine.
type Policy struct {
	Public   []PathRule
	Grants   map[identity.Role][]string
	Landings []Landing
	Rules    []Rule
}

var commonRoutes = []string{
	RouteDashboard,
	RouteSettings,
	RouteResetPassword,
	RouteUnauthorized,
	RouteAccount,
	RouteUserAccount,
	RouteNotifications,
	RouteAppsConnected,
	RouteVerifyResetPassword,
	RouteProjects,
	RouteProjectsGuests,
}

var signAuthoring = []string{
	RouteSignContacts,
	RouteSignCreateDocument,
	RouteSignCreateTemplate,
	RouteSignFolders,
	RouteSignInbox,
	RouteSignSent,
	RouteSignTemplate,
	RouteSignSign,
	RouteSignInfo,
	RouteSignComplete,
}

// AssetPrefixes are served to everyone, signed in or not. Entries ending in
// "/" cover a whole directory; the rest are single files.
var AssetPrefixes = []string{
	"/static/",
	"/assets/",
	"/favicon.ico",
	"/robots.txt",
}

// AssetRules compiles AssetPrefixes into path rules.
func AssetRules() []PathRule {
	rules := make([]PathRule, 0, len(AssetPrefixes))
	for _, a := range AssetPrefixes {
		if strings.HasSuffix(a, "/") {
			rules = append(rules, Prefix(strings.TrimSuffix(a, "/")))
			continue
		}
		rules = append(rules, Exact(a))
	}
	return rules
}

func withCommon(routes ...string) []string {
	return append(routes, commonRoutes...)
}

// DefaultPolicy returns the product route policy.
func DefaultPolicy() Policy {
	return Policy{
		Public: append(AssetRules(),
			Prefix(RouteSignIn),
			Prefix(RouteSignUp),
			Prefix(RouteForgotPassword),
			Prefix(RouteMaintenance),
			Prefix(RouteSystemUpdate),
			Prefix(RouteError),
			Exact(RouteSignDocumentAccess),
			Prefix(RouteSignSign),
			Prefix(RouteSignInfo),
			Prefix(RouteSignInboxShared),
		),
		Grants: map[identity.Role][]string{
			identity.SuperAdmin: {
				RouteOrganizationSetup,
				RouteConfigurations,
				RouteModuleSelection,
				RouteBilling,
				RouteSignContacts,
				RouteSignCreateDocument,
				RouteSignFolders,
				RouteSignInbox,
				RouteSignSent,
				RouteSignTemplate,
				RouteVerifyEmail,
				RouteVerifySuccess,
				RouteModules,
				RoutePayment,
				RouteRemovePeople,
				RouteSubscription,
				RouteProjects,
				RouteProjectsGuests,
				RouteInvoice,
				RouteInvoiceAll,
				RouteInvoiceCustomers,
				RouteConfigurationsInvoice,
			},

			identity.PeopleAdmin:     {RoutePeople},
			identity.LeaveAdmin:      {RouteLeave},
			identity.AttendanceAdmin: {RouteTimesheet, RouteConfigurationsAttendance},
			identity.ESignAdmin:      append(append([]string{}, signAuthoring...), RouteConfigurationsSign),
			identity.InvoiceAdmin: {
				RouteInvoice,
				RouteInvoiceAll,
				RouteInvoiceCustomers,
				RouteConfigurationsInvoice,
				RouteInvoiceCreate,
			},

			identity.PeopleManager:     {RoutePeople},
			identity.LeaveManager:      {RouteLeaveRequests, RouteLeaveTeamAnalytics, RouteLeavePending, RoutePeopleIndividual},
			identity.AttendanceManager: {RouteAllTimesheets, RouteTimesheetAnalytics, RoutePeopleIndividual},
			identity.InvoiceManager:    {RouteInvoice, RouteInvoiceAll, RouteInvoiceCustomers, RouteInvoiceCreate},

			identity.PeopleEmployee:     withCommon(RoutePeopleDirectory, RoutePeopleIndividual, RoutePeople),
			identity.LeaveEmployee:      withCommon(RouteLeaveMyRequests),
			identity.AttendanceEmployee: withCommon(RouteMyTimesheet),
			identity.ESignEmployee:      withCommon(RouteSignInbox, RouteSignSign, RouteSignInfo, RouteSignComplete),
			identity.InvoiceEmployee:    withCommon(RouteInvoiceAll),

			identity.ESignSender: append([]string{}, signAuthoring...),
		},
		Landings: []Landing{
			{
				Name:   "attendance-only-dashboard",
				Paths:  []PathRule{Prefix(RouteDashboard)},
				Holds:  identity.AttendanceEmployee,
				Lacks:  []identity.Role{identity.LeaveEmployee, identity.PeopleManager, identity.AttendanceManager},
				Target: RouteMyTimesheet,
			},
		},
		Rules: []Rule{
			{
				Name:       "leave-analytics-reports",
				Paths:      []PathRule{Exact(RouteLeaveAnalyticsReport)},
				Triggers:   []identity.Role{identity.LeaveManager},
				RequireAny: []identity.Role{identity.LeaveAdmin},
			},
			{
				Name:       "people-admin-only",
				Paths:      []PathRule{Prefix(RoutePeopleAnalyticsAdmin), Prefix(RoutePeopleJobFamilies)},
				RequireAny: []identity.Role{identity.PeopleAdmin},
			},
			{
				Name:       "people-manager-only",
				Paths:      []PathRule{Prefix(RoutePeopleTeams)},
				RequireAny: []identity.Role{identity.PeopleManager, identity.PeopleAdmin},
			},
			{
				Name:       "invoice-manager-only",
				Paths:      []PathRule{Prefix(RouteInvoiceCreate), Prefix(RouteInvoiceCustomers)},
				RequireAny: []identity.Role{identity.InvoiceManager, identity.InvoiceAdmin, identity.SuperAdmin},
			},
			{
				Name:       "esign-employee",
				Paths:      []PathRule{Prefix(RouteSign)},
				RequireAny: []identity.Role{identity.ESignEmployee},
			},
			{
				Name:        "integrations-paid-tier",
				Paths:       []PathRule{Prefix(RouteIntegrations)},
				RequireTier: identity.TierPro,
			},
		},
	}
}
