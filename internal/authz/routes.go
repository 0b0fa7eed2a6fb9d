package authz

// Application page routes.
const (
	RouteDashboard     = "/dashboard"
	RouteSettings      = "/settings"
	RouteBilling       = "/settings/billing"
	RouteModules       = "/settings/modules"
	RouteIntegrations  = "/settings/integrations"
	RoutePayment       = "/payment"
	RouteAppsConnected = "/integrations"
	RouteNotifications = "/notifications"
	RouteSubscription  = "/subscription"
	RouteRemovePeople  = "/remove-people"

	RouteSignIn              = "/signin"
	RouteSignUp              = "/signup"
	RouteForgotPassword      = "/forgot-password"
	RouteResetPassword       = "/reset-password"
	RouteUnauthorized        = "/unauthorized"
	RouteVerifyEmail         = "/verify/email"
	RouteVerifySuccess       = "/verify/success"
	RouteVerifyResetPassword = "/verify/reset-password"
	RouteMaintenance         = "/maintenance"
	RouteSystemUpdate        = "/system-update"
	RouteError               = "/error"

	RouteOrganizationSetup = "/setup-organization"
	RouteModuleSelection   = "/module-selection"

	RouteConfigurations           = "/configurations"
	RouteConfigurationsAttendance = "/configurations/attendance"
	RouteConfigurationsSign       = "/configurations/sign"
	RouteConfigurationsInvoice    = "/configurations/invoice"

	RoutePeople               = "/people"
	RoutePeopleDirectory      = "/people/directory"
	RoutePeopleIndividual     = "/people/individual"
	RoutePeopleTeams          = "/people/teams"
	RoutePeopleJobFamilies    = "/people/job-families"
	RoutePeopleHolidays       = "/people/holidays"
	RoutePeopleAnalyticsAdmin = "/people/analytics/reports"
	RouteAccount              = "/account"
	RouteUserAccount          = "/user-account"

	RouteLeave                = "/leave"
	RouteLeaveMyRequests      = "/leave/my-requests"
	RouteLeaveRequests        = "/leave/leave-requests"
	RouteLeavePending         = "/leave/pending"
	RouteLeaveTeamAnalytics   = "/leave/team-time-sheet-analytics"
	RouteLeaveAnalyticsReport = "/leave/team-time-sheet-analytics/reports"

	RouteTimesheet          = "/timesheet"
	RouteMyTimesheet        = "/timesheet/my-timesheet"
	RouteAllTimesheets      = "/timesheet/all-timesheets"
	RouteTimesheetAnalytics = "/timesheet/analytics"

	RouteSign               = "/sign"
	RouteSignContacts       = "/sign/contacts"
	RouteSignCreateDocument = "/sign/create/document"
	RouteSignCreateTemplate = "/sign/create/template"
	RouteSignFolders        = "/sign/folders"
	RouteSignInbox          = "/sign/inbox"
	RouteSignInboxShared    = "/sign/inbox/shared"
	RouteSignSent           = "/sign/sent"
	RouteSignTemplate       = "/sign/template"
	RouteSignSign           = "/sign/sign"
	RouteSignInfo           = "/sign/info"
	RouteSignComplete       = "/sign/complete"
	RouteSignDocumentAccess = "/sign/document-access"

	RouteProjects       = "/projects"
	RouteProjectsGuests = "/projects/guests"

	RouteInvoice          = "/invoice"
	RouteInvoiceAll       = "/invoice/all-invoices"
	RouteInvoiceCustomers = "/invoice/customers"
	RouteInvoiceCreate    = "/invoice/create"
)

// Namespaces are leading path segments stripped before policy lookup.
var Namespaces = []string{"/community", "/enterprise"}
