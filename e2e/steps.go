package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

// RegisterSteps registers all step definitions.
func RegisterSteps(ctx *godog.ScenarioContext, tc *TestContext) {
	// Background steps
	ctx.Step(`^the IGA engine is running$`, tc.engineIsRunning)

	// HR feed steps
	ctx.Step(`^the HR feed reports a new "([^"]*)" hire$`, tc.hireEmployee)
	ctx.Step(`^the HR feed moves the employee to "([^"]*)"$`, tc.moveEmployee)
	ctx.Step(`^the HR feed terminates the employee$`, tc.terminateEmployee)
	ctx.Step(`^the HR feed replays the same hire event$`, tc.replayHireEvent)
	ctx.Step(`^an unauthenticated caller posts an HR event$`, tc.postEventWithoutToken)

	// Workflow steps
	ctx.Step(`^an active "([^"]*)" employee called "([^"]*)"$`, tc.createNamedEmployee)
	ctx.Step(`^"([^"]*)" requests the entitlement "([^"]*)"$`, tc.submitRequest)
	ctx.Step(`^"([^"]*)" approves the request$`, tc.approveRequest)
	ctx.Step(`^"([^"]*)" rejects the request with reason "([^"]*)"$`, tc.rejectRequest)

	// Audit steps
	ctx.Step(`^I query the audit trail for actor "([^"]*)"$`, tc.queryAuditByActor)
	ctx.Step(`^the audit trail for the identity should record "([^"]*)"$`, tc.auditTrailForIdentityRecords)
	ctx.Step(`^the audit trail for the request should record "([^"]*)"$`, tc.auditTrailForRequestRecords)

	// Assertion steps
	ctx.Step(`^the response status should be (\d+)$`, tc.responseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.responseShouldContain)
	ctx.Step(`^the response field "([^"]*)" should equal "([^"]*)"$`, tc.responseFieldShouldEqual)
	ctx.Step(`^the identity status should be "([^"]*)"$`, tc.identityStatusShouldBe)
	ctx.Step(`^the identity should hold the entitlement "([^"]*)"$`, tc.identityShouldHold)
	ctx.Step(`^the identity should not hold the entitlement "([^"]*)"$`, tc.identityShouldNotHold)
	ctx.Step(`^the identity should hold no entitlements$`, tc.identityShouldHoldNothing)
	ctx.Step(`^"([^"]*)" should hold the entitlement "([^"]*)"$`, tc.namedShouldHold)
	ctx.Step(`^"([^"]*)" should not hold the entitlement "([^"]*)"$`, tc.namedShouldNotHold)
}

func (tc *TestContext) engineIsRunning(ctx context.Context) error {
	if err := tc.GET("/", nil); err != nil {
		return err
	}
	if tc.GetLastResponseStatus() != 200 {
		return fmt.Errorf("engine not reachable at %s: status %d", tc.BaseURL, tc.GetLastResponseStatus())
	}
	return nil
}

func (tc *TestContext) hireEmployee(ctx context.Context, department string) error {
	employeeID := "E2E-" + uuid.NewString()[:8]
	event := map[string]any{
		"event_type":  "EmployeeCreated",
		"employee_id": employeeID,
		"first_name":  "Grace",
		"last_name":   "Hopper",
		"email":       employeeID + "@example.com",
		"department":  department,
		"job_title":   "Specialist",
	}
	if err := tc.POSTWithHeaders("/api/hr/event", event, tc.FeedHeaders()); err != nil {
		return err
	}

	tc.EmployeeID = employeeID
	tc.LastHireEvent = event
	if tc.GetLastResponseStatus() == 201 {
		identityID, err := tc.identityFieldFromResponse("id")
		if err != nil {
			return err
		}
		tc.IdentityID = identityID
	}
	return nil
}

func (tc *TestContext) moveEmployee(ctx context.Context, department string) error {
	return tc.POSTWithHeaders("/api/hr/event", map[string]any{
		"event_type":  "EmployeeUpdated",
		"employee_id": tc.EmployeeID,
		"department":  department,
	}, tc.FeedHeaders())
}

func (tc *TestContext) terminateEmployee(ctx context.Context) error {
	return tc.POSTWithHeaders("/api/hr/event", map[string]any{
		"event_type":  "EmployeeTerminated",
		"employee_id": tc.EmployeeID,
	}, tc.FeedHeaders())
}

func (tc *TestContext) replayHireEvent(ctx context.Context) error {
	return tc.POSTWithHeaders("/api/hr/event", tc.LastHireEvent, tc.FeedHeaders())
}

func (tc *TestContext) postEventWithoutToken(ctx context.Context) error {
	return tc.POST("/api/hr/event", map[string]any{
		"event_type":  "EmployeeCreated",
		"employee_id": "E2E-" + uuid.NewString()[:8],
	})
}

func (tc *TestContext) createNamedEmployee(ctx context.Context, department, name string) error {
	if err := tc.hireEmployee(ctx, department); err != nil {
		return err
	}
	if tc.GetLastResponseStatus() != 201 {
		return fmt.Errorf("failed to create employee %q: status %d, body %s",
			name, tc.GetLastResponseStatus(), string(tc.LastResponseBody))
	}
	tc.Identities[name] = tc.IdentityID
	return nil
}

func (tc *TestContext) submitRequest(ctx context.Context, name, entitlement string) error {
	requesterID, ok := tc.Identities[name]
	if !ok {
		return fmt.Errorf("unknown scenario actor %q", name)
	}
	if err := tc.POST("/api/requests", map[string]any{
		"requester_id":  requesterID,
		"entitlement":   entitlement,
		"justification": "needed for project work",
	}); err != nil {
		return err
	}
	if tc.GetLastResponseStatus() == 201 {
		requestID, err := tc.GetResponseField("id")
		if err != nil {
			return err
		}
		tc.RequestID = requestID.(string)
	}
	return nil
}

func (tc *TestContext) approveRequest(ctx context.Context, name string) error {
	return tc.decideRequest(name, "approve", "")
}

func (tc *TestContext) rejectRequest(ctx context.Context, name, reason string) error {
	return tc.decideRequest(name, "reject", reason)
}

func (tc *TestContext) decideRequest(name, verdict, reason string) error {
	approverID, ok := tc.Identities[name]
	if !ok {
		return fmt.Errorf("unknown scenario actor %q", name)
	}
	body := map[string]any{"approver_id": approverID}
	if reason != "" {
		body["reason"] = reason
	}
	return tc.POST("/api/requests/"+tc.RequestID+"/"+verdict, body)
}

func (tc *TestContext) queryAuditByActor(ctx context.Context, actor string) error {
	return tc.GET("/api/audit/logs?actor="+url.QueryEscape(actor), nil)
}

func (tc *TestContext) auditTrailForIdentityRecords(ctx context.Context, action string) error {
	return tc.auditTrailRecords("identity:"+tc.IdentityID, action)
}

func (tc *TestContext) auditTrailForRequestRecords(ctx context.Context, action string) error {
	return tc.auditTrailRecords("request:"+tc.RequestID, action)
}

func (tc *TestContext) auditTrailRecords(target, action string) error {
	if err := tc.GET("/api/audit/logs?target="+url.QueryEscape(target), nil); err != nil {
		return err
	}
	if tc.GetLastResponseStatus() != 200 {
		return fmt.Errorf("audit query failed: status %d", tc.GetLastResponseStatus())
	}
	if !tc.ResponseContains(action) {
		return fmt.Errorf("audit trail for %s does not record %s\nResponse: %s",
			target, action, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseStatusShouldBe(ctx context.Context, expectedStatus int) error {
	if tc.GetLastResponseStatus() != expectedStatus {
		return fmt.Errorf("expected status %d but got %d\nResponse: %s",
			expectedStatus, tc.GetLastResponseStatus(), string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseShouldContain(ctx context.Context, text string) error {
	if !tc.ResponseContains(text) {
		return fmt.Errorf("response does not contain %q\nResponse: %s", text, string(tc.LastResponseBody))
	}
	return nil
}

func (tc *TestContext) responseFieldShouldEqual(ctx context.Context, field, expectedValue string) error {
	actualValue, err := tc.GetResponseField(field)
	if err != nil {
		return err
	}
	if fmt.Sprint(actualValue) != expectedValue {
		return fmt.Errorf("field %s: expected %s but got %v", field, expectedValue, actualValue)
	}
	return nil
}

func (tc *TestContext) identityStatusShouldBe(ctx context.Context, expected string) error {
	identity, err := tc.fetchIdentity(tc.IdentityID)
	if err != nil {
		return err
	}
	if identity["status"] != expected {
		return fmt.Errorf("expected identity status %q but got %v", expected, identity["status"])
	}
	return nil
}

func (tc *TestContext) identityShouldHold(ctx context.Context, entitlement string) error {
	return tc.checkEntitlement(tc.IdentityID, entitlement, true)
}

func (tc *TestContext) identityShouldNotHold(ctx context.Context, entitlement string) error {
	return tc.checkEntitlement(tc.IdentityID, entitlement, false)
}

func (tc *TestContext) identityShouldHoldNothing(ctx context.Context) error {
	identity, err := tc.fetchIdentity(tc.IdentityID)
	if err != nil {
		return err
	}
	entitlements := identity["entitlements"].([]any)
	if len(entitlements) != 0 {
		return fmt.Errorf("expected no entitlements but got %v", entitlements)
	}
	return nil
}

func (tc *TestContext) namedShouldHold(ctx context.Context, name, entitlement string) error {
	return tc.checkEntitlement(tc.Identities[name], entitlement, true)
}

func (tc *TestContext) namedShouldNotHold(ctx context.Context, name, entitlement string) error {
	return tc.checkEntitlement(tc.Identities[name], entitlement, false)
}

func (tc *TestContext) checkEntitlement(identityID, entitlement string, want bool) error {
	identity, err := tc.fetchIdentity(identityID)
	if err != nil {
		return err
	}
	held := false
	for _, e := range identity["entitlements"].([]any) {
		if e == entitlement {
			held = true
			break
		}
	}
	if held != want {
		return fmt.Errorf("entitlement %q held=%v, expected held=%v (set: %v)",
			entitlement, held, want, identity["entitlements"])
	}
	return nil
}

// fetchIdentity reads one identity through the public API.
func (tc *TestContext) fetchIdentity(identityID string) (map[string]any, error) {
	if identityID == "" {
		return nil, fmt.Errorf("no identity ID in scenario context")
	}
	if err := tc.GET("/api/identities/"+identityID, nil); err != nil {
		return nil, err
	}
	if tc.GetLastResponseStatus() != 200 {
		return nil, fmt.Errorf("fetch identity %s: status %d", identityID, tc.GetLastResponseStatus())
	}
	var identity map[string]any
	if err := json.Unmarshal(tc.LastResponseBody, &identity); err != nil {
		return nil, fmt.Errorf("failed to parse identity response: %w", err)
	}
	return identity, nil
}

// identityFieldFromResponse digs a field out of the HR event response's
// nested identity object.
func (tc *TestContext) identityFieldFromResponse(field string) (string, error) {
	var response struct {
		Identity map[string]any `json:"identity"`
	}
	if err := json.Unmarshal(tc.LastResponseBody, &response); err != nil {
		return "", fmt.Errorf("failed to parse hr event response: %w", err)
	}
	value, ok := response.Identity[field].(string)
	if !ok {
		return "", fmt.Errorf("identity field %s not found in response", field)
	}
	return value, nil
}
